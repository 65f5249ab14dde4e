// Package mock provides an in-memory [device.Link] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/danielacorner/frame-host-2/pkg/device"
)

// Compile-time assertions.
var (
	_ device.Link     = (*Link)(nil)
	_ device.Notifier = (*Link)(nil)
)

// Link records every sent message. Safe for concurrent use.
type Link struct {
	mu        sync.Mutex
	messages  []device.Message
	connected bool
	sendErr   error
	onChange  func(bool)
}

// NewLink returns a connected mock link.
func NewLink() *Link {
	return &Link{connected: true}
}

// Send records msg, or returns the configured error.
func (l *Link) Send(_ context.Context, msg device.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.messages = append(l.messages, msg)
	return nil
}

// Connected reports the simulated connection state.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Close marks the link disconnected.
func (l *Link) Close() error {
	l.SetConnected(false)
	return nil
}

// OnConnectionChange registers the connectivity callback.
func (l *Link) OnConnectionChange(fn func(connected bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Messages returns a copy of all recorded messages.
func (l *Link) Messages() []device.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]device.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// SetConnected flips the simulated connection state, firing the callback on
// transitions.
func (l *Link) SetConnected(v bool) {
	l.mu.Lock()
	changed := l.connected != v
	l.connected = v
	fn := l.onChange
	l.mu.Unlock()
	if changed && fn != nil {
		fn(v)
	}
}

// FailSends makes every subsequent Send return err (nil restores normal
// behaviour).
func (l *Link) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}
