package pipeline_test

import (
	"testing"

	"github.com/danielacorner/frame-host-2/internal/pipeline"
)

func TestState_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state pipeline.State
		want  string
	}{
		{pipeline.StateInitializing, "initializing"},
		{pipeline.StateModelError, "model_error"},
		{pipeline.StateDisconnected, "disconnected"},
		{pipeline.StateReady, "ready"},
		{pipeline.StateRunning, "running"},
		{pipeline.StateStopping, "stopping"},
		{pipeline.State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
