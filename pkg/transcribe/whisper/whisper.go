// Package whisper implements [transcribe.Transcriber] with the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once in [New] and shared; each Process call creates a
// fresh whisper context, because contexts are not reusable across inference
// runs while the model itself is safe to share.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/danielacorner/frame-host-2/pkg/transcribe"
)

// Compile-time assertion that Transcriber satisfies transcribe.Transcriber.
var _ transcribe.Transcriber = (*Transcriber)(nil)

const defaultLanguage = "auto"

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithLanguage sets the spoken-language hint passed to whisper.cpp (e.g.
// "en", "de", "auto"). Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithTranslate enables whisper's built-in translate-to-English mode. When
// enabled, segment text is the translation and is reported in
// [transcribe.Result.Translation].
func WithTranslate(enabled bool) Option {
	return func(t *Transcriber) { t.translate = enabled }
}

// Transcriber runs whisper.cpp inference over single audio frames.
type Transcriber struct {
	model     whisperlib.Model
	language  string
	translate bool
}

// New loads the ggml model at modelPath and returns a ready Transcriber.
// The caller must call Close when done. A load failure here is fatal to the
// application: there is no degraded mode without a model.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Loader returns a [transcribe.Loader] that constructs the Transcriber on
// demand. resolve supplies the model path (e.g. after a cache check or
// download).
func Loader(resolve func(ctx context.Context) (string, error), opts ...Option) transcribe.Loader {
	return func(ctx context.Context) (transcribe.Transcriber, error) {
		path, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		return New(path, opts...)
	}
}

// Process runs inference on one frame of 16 kHz mono PCM16LE audio.
// Returns (nil, nil) when whisper produced no segments — a silent or
// undecodable frame.
func (t *Transcriber) Process(ctx context.Context, pcm []byte) (*transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := pcmToFloat32(pcm)

	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", t.language, "error", err)
	}
	wctx.SetTranslate(t.translate)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return nil, nil
	}

	text := strings.Join(parts, " ")
	res := &transcribe.Result{Text: text}
	if t.translate {
		res.Translation = text
	}
	return res, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to [-1.0, 1.0]. Any trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
