// Package audio provides the microphone capture boundary and the frame
// chunker that turns an arbitrary-size PCM byte stream into fixed-size
// inference frames.
//
// The capture subsystem itself (platform APIs, permission prompts, device
// selection) lives behind the [Source] interface. This package only defines
// the contract the pipeline consumes and the buffering logic between the
// capture callback and the inference loop.
package audio

import "context"

// Audio format constants for the capture stream. The speech model expects
// 16 kHz mono 16-bit little-endian PCM; every Source implementation must
// deliver exactly this format.
const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 16000

	// Channels is the capture channel count (mono).
	Channels = 1

	// BytesPerSample is the width of one PCM sample (16-bit).
	BytesPerSample = 2
)

// Source is a live microphone (or equivalent) audio byte stream.
//
// Start returns a channel of PCM16LE byte chunks of arbitrary, non-uniform
// size, as delivered by the platform capture callback. The channel is closed
// when the stream ends (Stop, Close, or a device failure). A Source is
// single-use: once stopped it cannot be restarted — open a new Source for a
// new recording session.
type Source interface {
	// HasPermission reports whether microphone access has been granted.
	HasPermission() bool

	// Start begins capture and returns the chunk stream. The stream has
	// exactly one producer (the capture callback) and is intended for
	// exactly one consumer.
	Start(ctx context.Context) (<-chan []byte, error)

	// Stop ends capture. The chunk stream is closed after any already
	// delivered chunks.
	Stop() error

	// Close releases the underlying capture device.
	Close() error
}
