package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultFrameBytes is the nominal inference frame size: 4096 samples of
// 16-bit mono PCM (256 ms at 16 kHz).
const DefaultFrameBytes = 4096 * BytesPerSample // 8192

// Sentinel errors returned by [Open].
var (
	// ErrPermissionDenied indicates the source reported no microphone
	// permission. The run attempt should be aborted and surfaced to the
	// user as retryable.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceFailure indicates the source could not be started for any
	// reason other than a missing permission.
	ErrDeviceFailure = errors.New("audio: device failure")
)

// Frame is one fixed-size slice of raw PCM samples used as a single
// inference unit. Frames are created by the Chunker and consumed exactly
// once; the Chunker never reuses a Frame's backing array.
type Frame []byte

// ChunkerOption is a functional option for configuring a [Chunker].
type ChunkerOption func(*Chunker)

// WithFrameBytes overrides the frame size in bytes. The value must be a
// positive multiple of [BytesPerSample]. Default: [DefaultFrameBytes].
func WithFrameBytes(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 && n%BytesPerSample == 0 {
			c.frameBytes = n
		}
	}
}

// Chunker accumulates the arbitrary-size byte chunks delivered by a [Source]
// and slices them into fixed-size Frames. Leftover bytes smaller than one
// frame are retained and prepended to the next chunk, so no audio is dropped
// or duplicated across chunk boundaries.
//
// A Chunker is bound to one Source for one recording session and is not
// restartable. It is a single-consumer type: Next must not be called
// concurrently.
type Chunker struct {
	src        Source
	stream     <-chan []byte
	frameBytes int

	// buf holds bytes received but not yet emitted as frames. Its length is
	// always < frameBytes after a successful Next call.
	buf []byte
}

// Open validates permission, starts the source stream, and returns a Chunker
// bound to it.
//
// Returns [ErrPermissionDenied] when the source reports missing microphone
// permission, and an error wrapping [ErrDeviceFailure] for any other start
// failure.
func Open(ctx context.Context, src Source, opts ...ChunkerOption) (*Chunker, error) {
	if !src.HasPermission() {
		return nil, ErrPermissionDenied
	}

	stream, err := src.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}

	c := &Chunker{
		src:        src,
		stream:     stream,
		frameBytes: DefaultFrameBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FrameBytes returns the configured frame size in bytes.
func (c *Chunker) FrameBytes() int { return c.frameBytes }

// Next blocks until one full frame of audio has accumulated and returns it.
// Frames are returned strictly in capture order.
//
// Returns [io.EOF] once the source stream has closed and fewer than
// frameBytes of unconsumed audio remain (the trailing partial frame is never
// emitted). Returns ctx.Err() when ctx is cancelled while waiting.
//
// Because Next is pull-based, upstream chunks simply queue in the source
// channel while the caller is busy (e.g. running inference) — backpressure
// needs no extra machinery.
func (c *Chunker) Next(ctx context.Context) (Frame, error) {
	for len(c.buf) < c.frameBytes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-c.stream:
			if !ok {
				return nil, io.EOF
			}
			c.buf = append(c.buf, chunk...)
		}
	}

	frame := make(Frame, c.frameBytes)
	copy(frame, c.buf[:c.frameBytes])
	c.buf = c.buf[c.frameBytes:]
	return frame, nil
}

// Close stops and releases the underlying source. Safe to call after the
// stream has already ended.
func (c *Chunker) Close() error {
	if err := c.src.Stop(); err != nil {
		return fmt.Errorf("audio: stop source: %w", err)
	}
	return c.src.Close()
}
