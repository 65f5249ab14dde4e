package resilience

import (
	"context"

	"github.com/danielacorner/frame-host-2/pkg/translate"
)

var _ translate.Translator = (*Translator)(nil)

// Translator guards a [translate.Translator] with a [CircuitBreaker].
// After enough consecutive failures, Translate returns [ErrCircuitOpen]
// immediately instead of waiting on a backend that is not answering; the
// caption pipeline treats any translation error as "show the source text",
// so an open breaker degrades to untranslated captions at full frame rate.
type Translator struct {
	inner   translate.Translator
	breaker *CircuitBreaker
}

// NewTranslator wraps inner with a breaker built from cfg.
func NewTranslator(inner translate.Translator, cfg CircuitBreakerConfig) *Translator {
	if cfg.Name == "" {
		cfg.Name = "translator"
	}
	return &Translator{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Translate forwards to the wrapped translator through the breaker.
// Context cancellation counts as a failure like any other: a backend slow
// enough to blow the caller's deadline is a backend worth tripping on.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	var out string
	err := t.breaker.Execute(func() error {
		var innerErr error
		out, innerErr = t.inner.Translate(ctx, text, sourceLang, targetLang)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// State exposes the breaker state for health reporting.
func (t *Translator) State() State {
	return t.breaker.State()
}
