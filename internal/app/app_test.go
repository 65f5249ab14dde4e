package app_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/danielacorner/frame-host-2/internal/app"
	"github.com/danielacorner/frame-host-2/internal/archive"
	"github.com/danielacorner/frame-host-2/internal/config"
	"github.com/danielacorner/frame-host-2/internal/pipeline"
	devicemock "github.com/danielacorner/frame-host-2/pkg/device/mock"
	"github.com/danielacorner/frame-host-2/pkg/transcribe"
	transcribemock "github.com/danielacorner/frame-host-2/pkg/transcribe/mock"
)

// testConfig returns a minimal valid config for tests.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Model:  config.ModelConfig{Filename: "ggml-base.bin", Translate: true},
		Device: config.DeviceConfig{BridgeURL: "ws://localhost:9331/frame"},
	}
}

// blockingSource never produces audio; sessions stay open until cancelled.
type blockingSource struct {
	ch chan []byte
}

func newBlockingSource() *blockingSource {
	return &blockingSource{ch: make(chan []byte)}
}

func (s *blockingSource) HasPermission() bool                          { return true }
func (s *blockingSource) Start(context.Context) (<-chan []byte, error) { return s.ch, nil }
func (s *blockingSource) Stop() error                                  { return nil }
func (s *blockingSource) Close() error                                 { return nil }

func testComponents(tr transcribe.Transcriber) app.Components {
	return app.Components{
		Source: newBlockingSource(),
		Link:   devicemock.NewLink(),
		Loader: func(context.Context) (transcribe.Transcriber, error) { return tr, nil },
	}
}

func TestNew_RequiresComponents(t *testing.T) {
	t.Parallel()

	comps := testComponents(transcribemock.New())
	comps.Loader = nil
	if _, err := app.New(context.Background(), testConfig(), comps); err == nil {
		t.Fatal("New without loader: got nil error")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), testComponents(transcribemock.New()),
		app.WithArchive(archive.NewMemory()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the session to come up, then cancel.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && a.Controller().State() != pipeline.StateRunning {
		time.Sleep(5 * time.Millisecond)
	}
	if got := a.Controller().State(); got != pipeline.StateRunning {
		t.Fatalf("state: got %v, want running", got)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			t.Errorf("Run: got %v, want nil or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, sCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer sCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestApplyConfig_HotReload(t *testing.T) {
	t.Parallel()

	lv := &slog.LevelVar{}
	a, err := app.New(context.Background(), testConfig(), testComponents(transcribemock.New()),
		app.WithArchive(archive.NewMemory()),
		app.WithLogLevel(lv),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	old := testConfig()
	updated := testConfig()
	updated.Server.LogLevel = config.LogDebug
	updated.Display.Width = 320
	updated.Display.Lines = 2

	a.ApplyConfig(old, updated)

	if got := lv.Level(); got != slog.LevelDebug {
		t.Errorf("log level: got %v, want debug", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), testComponents(transcribemock.New()),
		app.WithArchive(archive.NewMemory()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
