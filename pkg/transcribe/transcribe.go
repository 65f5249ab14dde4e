// Package transcribe defines the speech-inference boundary the pipeline
// consumes: one fixed-size PCM frame in, recognized (and optionally
// translated) text out.
package transcribe

import "context"

// Result is the outcome of running inference on one audio frame.
type Result struct {
	// Text is the recognized text in the spoken language.
	Text string

	// Translation is the text rendered into the target language by the same
	// inference call. Empty when the engine ran without translation.
	Translation string
}

// Translated returns the translation, falling back to the recognized text
// when the engine produced none.
func (r Result) Translated() string {
	if r.Translation != "" {
		return r.Translation
	}
	return r.Text
}

// Transcriber runs incremental speech inference. Process is called once per
// frame, strictly in order, never concurrently; a call may take longer than
// the frame's real-time duration — the caller provides backpressure.
//
// A nil Result with a nil error means the frame contained no decodable
// speech.
type Transcriber interface {
	Process(ctx context.Context, pcm []byte) (*Result, error)
	Close() error
}

// Loader constructs a ready Transcriber, typically by loading a model file.
// A Loader failure is fatal to the application startup.
type Loader func(ctx context.Context) (Transcriber, error)
