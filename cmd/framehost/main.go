// Command framehost runs the live-caption host: it captures microphone
// audio, transcribes and translates it incrementally, and streams the
// wrapped captions to the glasses display through the bridge daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/danielacorner/frame-host-2/internal/app"
	"github.com/danielacorner/frame-host-2/internal/audio"
	"github.com/danielacorner/frame-host-2/internal/audio/bridge"
	"github.com/danielacorner/frame-host-2/internal/config"
	"github.com/danielacorner/frame-host-2/internal/model"
	"github.com/danielacorner/frame-host-2/internal/observe"
	"github.com/danielacorner/frame-host-2/pkg/device"
	devicews "github.com/danielacorner/frame-host-2/pkg/device/ws"
	"github.com/danielacorner/frame-host-2/pkg/transcribe/whisper"
	"github.com/danielacorner/frame-host-2/pkg/translate"
	translateanyllm "github.com/danielacorner/frame-host-2/pkg/translate/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "framehost: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "framehost: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("framehost starting",
		"config", *configPath,
		"bridge_url", cfg.Device.BridgeURL,
		"model", cfg.Model.Filename,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "framehost",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Capture source ────────────────────────────────────────────────────────
	audioCfg := cfg.Audio
	if audioCfg.Source == "" {
		audioCfg.Source = "bridge"
	}
	source, err := reg.CreateSource(audioCfg)
	if err != nil {
		slog.Error("failed to create capture source", "name", audioCfg.Source, "err", err)
		return 1
	}
	slog.Info("capture source ready", "name", audioCfg.Source, "opus", audioCfg.Opus)

	// ── Standalone translator (optional) ──────────────────────────────────────
	translator, err := reg.CreateTranslator(cfg.Translator)
	if err != nil {
		slog.Error("failed to create translator",
			"provider", cfg.Translator.Provider, "backend", cfg.Translator.Backend, "err", err)
		return 1
	}
	if translator != nil {
		slog.Info("translator ready",
			"provider", cfg.Translator.Provider,
			"backend", cfg.Translator.Backend,
			"model", cfg.Translator.Model,
		)
	}

	// ── Speech model ──────────────────────────────────────────────────────────
	provider, err := newModelProvider(cfg.Model)
	if err != nil {
		slog.Error("failed to configure model provider", "err", err)
		return 1
	}
	loader := whisper.Loader(provider.Prepare,
		whisper.WithLanguage(cfg.Model.Language),
		whisper.WithTranslate(cfg.Model.Translate),
	)

	// ── Display link ──────────────────────────────────────────────────────────
	link := device.NewReconnector(device.ReconnectorConfig{
		Dial: func(ctx context.Context) (device.Link, error) {
			return devicews.Dial(ctx, cfg.Device.BridgeURL)
		},
	})
	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	err = link.Connect(dialCtx)
	cancelDial()
	if err != nil {
		slog.Error("failed to connect to the display bridge", "url", cfg.Device.BridgeURL, "err", err)
		return 1
	}
	link.Monitor(ctx)
	slog.Info("display bridge connected", "url", cfg.Device.BridgeURL)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.Components{
		Source:     source,
		Link:       link,
		Loader:     loader,
		Translator: translator,
	}, app.WithLogLevel(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("host ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// version is stamped by the build (-ldflags "-X main.version=…").
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the capture sources and translators that
// ship with framehost into reg.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// "bridge" streams mic audio relayed over the same daemon that owns the
	// display link; the audio endpoint lives next to the display endpoint.
	reg.RegisterSource("bridge", func(config.AudioConfig) (audio.Source, error) {
		u, err := audioEndpoint(cfg.Device.BridgeURL)
		if err != nil {
			return nil, err
		}
		return bridge.New(u), nil
	})

	// "anyllm" routes standalone translation through any LLM backend.
	reg.RegisterTranslator("anyllm", func(entry config.TranslatorConfig) (translate.Translator, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return translateanyllm.New(entry.Backend, entry.Model, opts...)
	})

	for _, name := range reg.SourceNames() {
		slog.Debug("registered capture source", "name", name)
	}
}

// newModelProvider builds the model cache resolver from the model config.
func newModelProvider(mc config.ModelConfig) (*model.Provider, error) {
	var opts []model.Option
	if mc.DownloadURL != "" {
		opts = append(opts, model.WithDownloadURL(mc.DownloadURL))
	}
	if mc.BundledPath != "" {
		opts = append(opts, model.WithBundledPath(mc.BundledPath))
	}
	if mc.MinBytes > 0 {
		opts = append(opts, model.WithMinBytes(mc.MinBytes))
	}
	opts = append(opts, model.WithProgress(func(percent int) {
		slog.Info("model download", "percent", percent)
	}))
	return model.NewProvider(mc.Dir, mc.Filename, opts...)
}

// audioEndpoint derives the bridge's audio URL from its display URL by
// swapping the path, keeping scheme and host.
func audioEndpoint(bridgeURL string) (string, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return "", fmt.Errorf("parse bridge url %q: %w", bridgeURL, err)
	}
	u.Path = "/audio"
	return u.String(), nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
