package audio

import (
	"context"
	"fmt"

	"layeh.com/gopus"
)

// opusFrameSize is the number of samples per channel in one 20 ms Opus frame
// at the capture sample rate.
const opusFrameSize = SampleRate * 20 / 1000 // 320

// OpusSource adapts a Source that delivers Opus packets (one packet per chunk)
// into the PCM16LE byte stream the Chunker expects. Capture layers that hand
// over compressed audio — e.g. a companion app forwarding a phone microphone —
// wrap their raw source in an OpusSource before opening a Chunker on it.
//
// The decoder is stateful, so an OpusSource is single-use like any Source.
type OpusSource struct {
	inner Source
	dec   *gopus.Decoder
}

// NewOpusSource creates an OpusSource decoding packets from inner.
func NewOpusSource(inner Source) (*OpusSource, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusSource{inner: inner, dec: dec}, nil
}

// HasPermission defers to the wrapped source.
func (s *OpusSource) HasPermission() bool { return s.inner.HasPermission() }

// Start starts the wrapped source and returns a stream of decoded PCM chunks.
// Packets that fail to decode are skipped; decode errors do not end the
// stream because a single corrupted packet is recoverable.
func (s *OpusSource) Start(ctx context.Context) (<-chan []byte, error) {
	packets, err := s.inner.Start(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, cap(packets))
	go func() {
		defer close(out)
		for pkt := range packets {
			pcm, err := s.dec.Decode(pkt, opusFrameSize, false)
			if err != nil {
				continue
			}
			select {
			case out <- int16sToBytes(pcm):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Stop stops the wrapped source.
func (s *OpusSource) Stop() error { return s.inner.Stop() }

// Close releases the wrapped source.
func (s *OpusSource) Close() error { return s.inner.Close() }

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		b[i*2] = byte(v)
		b[i*2+1] = byte(v >> 8)
	}
	return b
}
