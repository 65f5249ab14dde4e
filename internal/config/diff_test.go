package config_test

import (
	"testing"

	"github.com/danielacorner/frame-host-2/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Display:  config.DisplayConfig{Width: 640, Lines: 4},
		Captions: config.CaptionsConfig{SimilarityThreshold: 0},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if d.Any() {
		t.Errorf("Diff(identical) = %+v, want no changes", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff = %+v, want LogLevelChanged to debug", d)
	}
	if d.DisplayChanged || d.CaptionsChanged {
		t.Errorf("Diff = %+v, unrelated sections flagged", d)
	}
}

func TestDiff_Display(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Display.Lines = 2

	d := config.Diff(old, new)
	if !d.DisplayChanged || d.NewDisplay.Lines != 2 {
		t.Errorf("Diff = %+v, want DisplayChanged with 2 lines", d)
	}
}

func TestDiff_Captions(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Captions.SimilarityThreshold = 0.9

	d := config.Diff(old, new)
	if !d.CaptionsChanged || d.NewCaptions.SimilarityThreshold != 0.9 {
		t.Errorf("Diff = %+v, want CaptionsChanged with 0.9", d)
	}
	if !d.Any() {
		t.Error("Any() = false with a change present")
	}
}
