package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/danielacorner/frame-host-2/pkg/translate"
)

func TestTranslator_ForwardsSuccess(t *testing.T) {
	inner := translate.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return "hallo: " + text, nil
	})
	tr := NewTranslator(inner, CircuitBreakerConfig{})

	got, err := tr.Translate(context.Background(), "hello", "en", "de")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if want := "hallo: hello"; got != want {
		t.Errorf("Translate = %q, want %q", got, want)
	}
	if tr.State() != StateClosed {
		t.Errorf("State = %v, want closed", tr.State())
	}
}

func TestTranslator_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	inner := translate.Func(func(context.Context, string, string, string) (string, error) {
		calls++
		return "", errTest
	})
	tr := NewTranslator(inner, CircuitBreakerConfig{MaxFailures: 2})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := tr.Translate(ctx, "x", "", "en"); !errors.Is(err, errTest) {
			t.Fatalf("Translate %d: err=%v, want errTest", i, err)
		}
	}
	if tr.State() != StateOpen {
		t.Fatalf("State after failures = %v, want open", tr.State())
	}

	// The open breaker rejects without calling the backend.
	if _, err := tr.Translate(ctx, "x", "", "en"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Translate with open breaker: err=%v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}
}
