package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ErrLinkDown is returned by [Reconnector.Send] while no live bridge
// connection exists.
var ErrLinkDown = errors.New("device: link is down")

// Compile-time assertions that Reconnector is a drop-in Link.
var (
	_ Link     = (*Reconnector)(nil)
	_ Notifier = (*Reconnector)(nil)
)

// DialFunc establishes one bridge connection.
type DialFunc func(ctx context.Context) (Link, error)

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Dial establishes a new bridge connection. Required.
	Dial DialFunc

	// MaxRetries is the maximum number of redial attempts per drop before
	// giving up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial delay between redial attempts. Doubles each
	// attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on the redial delay. Defaults to 30s
	// if zero.
	MaxBackoff time.Duration
}

// Reconnector is a [Link] that survives bridge restarts. It wraps the
// connection produced by a [DialFunc] and, when that connection drops,
// redials with exponential backoff while the pipeline sits in its
// disconnected state. Connectivity callbacks registered via
// OnConnectionChange fire on the drop and again once the redial succeeds,
// so the pipeline's ready/disconnected tracking works unchanged.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	dial       DialFunc
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	link     Link
	onChange func(bool)

	done     chan struct{}
	stopOnce sync.Once
	dropped  chan struct{} // signalled when the current link is lost
}

// NewReconnector creates a [Reconnector]. Zero-value config fields are
// replaced with defaults.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Reconnector{
		dial:       cfg.Dial,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		done:       make(chan struct{}),
		dropped:    make(chan struct{}, 1),
	}
}

// Connect performs the initial dial. Monitor must be called afterwards for
// drops to trigger redials.
func (r *Reconnector) Connect(ctx context.Context) error {
	link, err := r.dial(ctx)
	if err != nil {
		return fmt.Errorf("device: initial connect: %w", err)
	}
	r.adopt(link)
	return nil
}

// Monitor starts the redial loop in a background goroutine. The loop ends
// when ctx is cancelled or the Reconnector is closed.
func (r *Reconnector) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// Send forwards msg to the current connection.
func (r *Reconnector) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	link := r.link
	r.mu.Unlock()

	if link == nil {
		return ErrLinkDown
	}
	return link.Send(ctx, msg)
}

// Connected reports whether a live bridge connection exists.
func (r *Reconnector) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.link != nil && r.link.Connected()
}

// OnConnectionChange registers fn for connectivity transitions. Only one
// callback is kept; later registrations replace earlier ones.
func (r *Reconnector) OnConnectionChange(fn func(connected bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Close halts monitoring and closes the current connection. Safe to call
// more than once.
func (r *Reconnector) Close() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	link := r.link
	r.link = nil
	r.mu.Unlock()

	if link != nil {
		return link.Close()
	}
	return nil
}

// adopt installs link as the current connection and hooks its drop
// notification into the redial loop.
func (r *Reconnector) adopt(link Link) {
	if n, ok := link.(Notifier); ok {
		n.OnConnectionChange(func(connected bool) {
			if !connected {
				r.notifyDrop()
			}
		})
	}

	r.mu.Lock()
	r.link = link
	r.mu.Unlock()
}

// notifyDrop signals the monitor that the connection was lost and tells the
// registered callback. Only the first signal per redial cycle has effect.
func (r *Reconnector) notifyDrop() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(false)
	}

	select {
	case r.dropped <- struct{}{}:
	default:
	}
}

// monitorLoop waits for drop signals and redials.
func (r *Reconnector) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.dropped:
			r.redial(ctx)
		}
	}
}

// redial attempts to re-establish the bridge connection with exponential
// backoff.
func (r *Reconnector) redial(ctx context.Context) {
	backoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		slog.Info("redialling display bridge",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", backoff,
		)

		link, err := r.dial(ctx)
		if err == nil {
			r.mu.Lock()
			old := r.link
			r.mu.Unlock()
			r.adopt(link)
			if old != nil {
				old.Close()
			}

			slog.Info("display bridge reconnected", "attempt", attempt)

			r.mu.Lock()
			fn := r.onChange
			r.mu.Unlock()
			if fn != nil {
				fn(true)
			}
			return
		}

		slog.Warn("bridge redial failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}

	slog.Error("giving up on bridge redial", "max_retries", r.maxRetries)
}
