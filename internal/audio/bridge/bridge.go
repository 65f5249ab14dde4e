// Package bridge provides an [audio.Source] that receives microphone audio
// relayed by the display bridge daemon over WebSocket. The bridge forwards
// each capture callback's bytes as one binary frame, so chunk sizes are
// arbitrary and non-uniform exactly as the chunker expects.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/danielacorner/frame-host-2/internal/audio"
)

var _ audio.Source = (*Source)(nil)

// chunkBuffer is the capacity of the chunk channel. Inference stalls longer
// than this many capture callbacks push backpressure onto the socket.
const chunkBuffer = 32

// Source streams microphone chunks from the bridge's audio endpoint.
// Like every [audio.Source] it is single-use: one Start, one Stop.
type Source struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	stopped bool

	// done releases a readLoop parked on a full chunk channel; closing the
	// connection alone only unblocks its Read.
	done chan struct{}
}

// New returns a Source that will connect to the bridge at url
// (e.g. "ws://localhost:9120/audio") when started.
func New(url string) *Source {
	return &Source{url: url, done: make(chan struct{})}
}

// HasPermission always reports true: microphone consent is granted on the
// companion device and the bridge refuses the audio endpoint without it, so
// a failed Start is the permission signal here.
func (s *Source) HasPermission() bool { return true }

// Start dials the bridge and returns the chunk stream. The stream closes
// when the connection drops or Stop is called.
func (s *Source) Start(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, errors.New("audio/bridge: source already started")
	}

	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("audio/bridge: dial %q: %w", s.url, err)
	}
	// Capture chunks arrive as fast as the mic produces them; the limit
	// only bounds single frames.
	conn.SetReadLimit(1 << 20)

	s.conn = conn
	s.started = true

	out := make(chan []byte, chunkBuffer)
	go s.readLoop(conn, out)
	return out, nil
}

// readLoop forwards binary frames to out until the connection ends or the
// source is stopped.
func (s *Source) readLoop(conn *websocket.Conn, out chan<- []byte) {
	defer close(out)
	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}
		select {
		case out <- data:
		case <-s.done:
			// The consumer is gone; stop without draining.
			return
		}
	}
}

// Stop ends capture by closing the bridge connection; the chunk stream is
// closed after any frames already read.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	s.conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

// Close releases the connection. Equivalent to Stop for this source.
func (s *Source) Close() error { return s.Stop() }
