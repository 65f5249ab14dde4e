// Package mock provides a scripted [transcribe.Transcriber] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/danielacorner/frame-host-2/pkg/transcribe"
)

// Compile-time assertion.
var _ transcribe.Transcriber = (*Transcriber)(nil)

// Step is one scripted Process outcome.
type Step struct {
	Result *transcribe.Result
	Err    error
}

// Transcriber replays a fixed script of results, one per Process call.
// After the script is exhausted, Process returns (nil, nil) for every frame.
// Safe for concurrent use.
type Transcriber struct {
	mu     sync.Mutex
	script []Step
	calls  int
	closed bool
}

// New returns a Transcriber that replays steps in order.
func New(steps ...Step) *Transcriber {
	return &Transcriber{script: steps}
}

// Text is a convenience constructor for a step with a translated result.
func Text(translation string) Step {
	return Step{Result: &transcribe.Result{Text: translation, Translation: translation}}
}

// Silence is a convenience constructor for a no-speech step.
func Silence() Step {
	return Step{}
}

// Process returns the next scripted step.
func (t *Transcriber) Process(_ context.Context, _ []byte) (*transcribe.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls >= len(t.script) {
		t.calls++
		return nil, nil
	}
	step := t.script[t.calls]
	t.calls++
	return step.Result, step.Err
}

// Calls returns how many times Process has been invoked.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Close marks the transcriber closed.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (t *Transcriber) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
