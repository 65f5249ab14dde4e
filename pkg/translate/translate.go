// Package translate defines the optional text-translation boundary used when
// the speech engine itself runs without translation.
package translate

import "context"

// Translator renders text from the source language into the target language.
// Implementations must be safe for sequential reuse from the run loop; a
// failed translation is not fatal — the caller falls back to the source text.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}
