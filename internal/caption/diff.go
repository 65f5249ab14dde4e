// Package caption decides which translated texts reach the display and how
// they are laid out for it.
//
// Overlapping inference windows routinely produce identical text back to
// back; the [Differ] suppresses those repeats so the low-bandwidth link only
// carries genuine updates, while still propagating the transition to silence
// as an explicit display clear.
package caption

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Action is the verdict for one translated text.
type Action int

const (
	// ActionSuppress means the text duplicates the last emitted text; send
	// nothing.
	ActionSuppress Action = iota

	// ActionClear means the translation went empty after a non-empty text;
	// blank the remote display.
	ActionClear

	// ActionEmit means the text changed; send it.
	ActionEmit
)

// String returns the lower-case name of the action.
func (a Action) String() string {
	switch a {
	case ActionSuppress:
		return "suppress"
	case ActionClear:
		return "clear"
	case ActionEmit:
		return "emit"
	}
	return "unknown"
}

// Decision is the outcome of processing one translated text. Text is only
// meaningful when Action is [ActionEmit].
type Decision struct {
	Action Action
	Text   string
}

// DifferOption is a functional option for configuring a [Differ].
type DifferOption func(*Differ)

// WithSimilarityThreshold enables near-duplicate suppression: a non-empty
// text whose Jaro-Winkler similarity to the last emitted text is at or above
// threshold is treated as a duplicate. Values outside (0, 1] disable the
// check, leaving exact-equality matching only — the default.
func WithSimilarityThreshold(threshold float64) DifferOption {
	return func(d *Differ) {
		if threshold > 0 && threshold <= 1 {
			d.similarity = threshold
		}
	}
}

// Differ tracks the last emitted translated text for one run session and
// classifies each new text as a duplicate, a clear, or a genuine update.
//
// Differ is a single-writer type: it is owned by the run loop and must not
// be shared across goroutines. Call [Differ.Reset] at session start.
type Differ struct {
	last       string
	similarity float64
}

// NewDiffer returns a Differ with empty state.
func NewDiffer(opts ...DifferOption) *Differ {
	d := &Differ{}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Process classifies translated against the last emitted text.
//
// Invariant: after Process returns, the tracked state equals the most
// recently emitted (not merely produced) text — a suppressed near-duplicate
// leaves the state untouched.
func (d *Differ) Process(translated string) Decision {
	switch {
	case translated == d.last:
		return Decision{Action: ActionSuppress}
	case translated == "":
		// Empty after non-empty is an active transition to silence, not an
		// unchanged text.
		d.last = ""
		return Decision{Action: ActionClear}
	case d.isNearDuplicate(translated):
		return Decision{Action: ActionSuppress}
	default:
		d.last = translated
		return Decision{Action: ActionEmit, Text: translated}
	}
}

// Last returns the most recently emitted text ("" after a clear or reset).
func (d *Differ) Last() string { return d.last }

// Reset clears the tracked state for a new run session.
func (d *Differ) Reset() { d.last = "" }

// isNearDuplicate reports whether text is close enough to the last emitted
// text to count as a repeat, per the configured similarity threshold.
func (d *Differ) isNearDuplicate(text string) bool {
	if d.similarity == 0 || d.last == "" {
		return false
	}
	score := matchr.JaroWinkler(strings.ToLower(text), strings.ToLower(d.last), false)
	return score >= d.similarity
}
