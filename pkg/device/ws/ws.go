// Package ws provides a WebSocket-backed [device.Link] that talks to the
// display bridge daemon. The bridge owns the BLE connection to the glasses
// and relays every binary WebSocket frame to the device verbatim, so the
// framing produced by [device.Message.Encode] goes over the wire unchanged.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/danielacorner/frame-host-2/pkg/device"
)

// Compile-time assertions that Link satisfies the device interfaces.
var (
	_ device.Link     = (*Link)(nil)
	_ device.Notifier = (*Link)(nil)
)

// Link is a [device.Link] over a WebSocket connection to the bridge.
type Link struct {
	conn *websocket.Conn

	mu        sync.Mutex
	connected bool
	onChange  func(bool)

	readDone chan struct{}
}

// Dial connects to the bridge at url (e.g. "ws://localhost:9120/display")
// and returns a connected Link.
func Dial(ctx context.Context, url string) (*Link, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("device/ws: dial %q: %w", url, err)
	}

	l := &Link{
		conn:      conn,
		connected: true,
		readDone:  make(chan struct{}),
	}

	// The bridge never sends application data; the read loop exists to
	// observe connection loss and service control frames.
	go l.readLoop()

	return l, nil
}

// Send writes one framed message as a binary WebSocket frame.
func (l *Link) Send(ctx context.Context, msg device.Message) error {
	if !l.Connected() {
		return errors.New("device/ws: link is disconnected")
	}
	if err := l.conn.Write(ctx, websocket.MessageBinary, msg.Encode()); err != nil {
		l.setConnected(false)
		return fmt.Errorf("device/ws: send: %w", err)
	}
	return nil
}

// Connected reports whether the bridge connection is alive.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// OnConnectionChange registers fn to be called when the connection state
// changes. Only one callback is kept; later registrations replace earlier
// ones.
func (l *Link) OnConnectionChange(fn func(connected bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Close tears down the bridge connection. Safe to call more than once.
func (l *Link) Close() error {
	l.setConnected(false)
	err := l.conn.Close(websocket.StatusNormalClosure, "")
	<-l.readDone
	if err != nil && !errors.Is(err, context.Canceled) {
		// Closing an already-failed connection reports the original failure;
		// the link is down either way.
		return nil
	}
	return nil
}

// readLoop drains inbound frames until the connection dies, then flips the
// connected flag.
func (l *Link) readLoop() {
	defer close(l.readDone)
	for {
		if _, _, err := l.conn.Read(context.Background()); err != nil {
			l.setConnected(false)
			return
		}
	}
}

// setConnected updates the connection flag and fires the change callback on
// transitions.
func (l *Link) setConnected(v bool) {
	l.mu.Lock()
	changed := l.connected != v
	l.connected = v
	fn := l.onChange
	l.mu.Unlock()

	if changed && fn != nil {
		fn(v)
	}
}
