// Package app owns subsystem lifetimes: it wires the capture source, speech
// model, translator, archive, and display link into a pipeline controller,
// runs the operational HTTP server, and tears everything down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/danielacorner/frame-host-2/internal/archive"
	archivepg "github.com/danielacorner/frame-host-2/internal/archive/postgres"
	"github.com/danielacorner/frame-host-2/internal/audio"
	"github.com/danielacorner/frame-host-2/internal/caption"
	"github.com/danielacorner/frame-host-2/internal/config"
	"github.com/danielacorner/frame-host-2/internal/health"
	"github.com/danielacorner/frame-host-2/internal/observe"
	"github.com/danielacorner/frame-host-2/internal/pipeline"
	"github.com/danielacorner/frame-host-2/internal/resilience"
	"github.com/danielacorner/frame-host-2/pkg/device"
	"github.com/danielacorner/frame-host-2/pkg/transcribe"
	"github.com/danielacorner/frame-host-2/pkg/translate"
)

// Components holds the externally constructed pieces the App wires together.
// Source, Link, and Loader are required; Translator may be nil. Populated by
// main.go via the config registry.
type Components struct {
	Source     audio.Source
	Link       device.Link
	Loader     transcribe.Loader
	Translator translate.Translator
}

// App owns the pipeline controller and the operational HTTP server.
type App struct {
	cfg   *config.Config
	comps Components

	controller *pipeline.Controller
	translator *resilience.Translator
	arch       archive.Archive
	metrics    *observe.Metrics
	logLevel   *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithArchive injects a caption archive instead of creating one from config.
func WithArchive(a archive.Archive) Option {
	return func(app *App) { app.arch = a }
}

// WithMetrics injects metric instruments instead of the package defaults.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// WithLogLevel hands the App the level var backing the root logger so config
// reloads can adjust verbosity.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(app *App) { app.logLevel = lv }
}

// New creates an App by wiring all subsystems together. It connects to the
// caption archive (when configured) and builds the pipeline controller, but
// does not load the model; Run does that.
func New(ctx context.Context, cfg *config.Config, comps Components, opts ...Option) (*App, error) {
	if comps.Source == nil || comps.Link == nil || comps.Loader == nil {
		return nil, errors.New("app: source, link, and loader are required")
	}

	a := &App{cfg: cfg, comps: comps}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}
	a.initController()

	return a, nil
}

// initArchive connects the PostgreSQL caption store, or falls back to the
// in-memory archive when no DSN is configured.
func (a *App) initArchive(ctx context.Context) error {
	if a.arch != nil {
		return nil
	}
	if dsn := a.cfg.Archive.PostgresDSN; dsn != "" {
		store, err := archivepg.NewStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.arch = store
		a.closers = append(a.closers, store.Close)
		slog.Info("caption archive connected")
		return nil
	}
	a.arch = archive.NewMemory()
	return nil
}

func (a *App) initController() {
	opts := []pipeline.Option{
		pipeline.WithArchive(a.arch),
		pipeline.WithMetrics(a.metrics),
	}
	if a.comps.Translator != nil {
		// The breaker keeps a dead translation backend from stalling every
		// frame; an open circuit degrades to untranslated captions.
		a.translator = resilience.NewTranslator(a.comps.Translator, resilience.CircuitBreakerConfig{
			Name: "translator",
		})
		opts = append(opts,
			pipeline.WithTranslator(a.translator),
			pipeline.WithLanguages(a.cfg.Translator.SourceLang, a.cfg.Translator.TargetLang),
		)
	}
	if a.cfg.Display.Width > 0 || a.cfg.Display.Lines > 0 {
		opts = append(opts, pipeline.WithWrap(a.cfg.Display.Width, a.cfg.Display.Lines))
	}
	if a.cfg.Audio.FrameBytes > 0 {
		opts = append(opts, pipeline.WithFrameBytes(a.cfg.Audio.FrameBytes))
	}
	if a.cfg.Captions.SimilarityThreshold > 0 {
		opts = append(opts, pipeline.WithSimilarityThreshold(a.cfg.Captions.SimilarityThreshold))
	}

	a.controller = pipeline.New(a.comps.Source, a.comps.Link, a.comps.Loader, opts...)
	a.closers = append(a.closers, a.controller.Close)
}

// Controller exposes the pipeline controller for operational surfaces
// (session start/stop) and tests.
func (a *App) Controller() *pipeline.Controller {
	return a.controller
}

// ApplyConfig applies a hot-reloaded config. Only the fields tracked by
// [config.Diff] change at runtime; everything else requires a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DisplayChanged {
		width, lines := d.NewDisplay.Width, d.NewDisplay.Lines
		if width <= 0 {
			width = caption.DefaultWrapWidth
		}
		if lines <= 0 {
			lines = caption.DefaultMaxLines
		}
		a.controller.SetWrap(width, lines)
		slog.Info("display budget changed", "width", width, "lines", lines)
	}
	if d.CaptionsChanged {
		a.controller.SetSimilarityThreshold(d.NewCaptions.SimilarityThreshold)
		slog.Info("caption similarity threshold changed", "threshold", d.NewCaptions.SimilarityThreshold)
	}
	a.cfg = new
}

// Run initialises the pipeline (loading the model), starts captioning, and
// serves /metrics and /healthz until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.controller.Init(ctx); err != nil {
		return fmt.Errorf("app: init pipeline: %w", err)
	}
	if err := a.controller.Start(ctx); err != nil {
		return fmt.Errorf("app: start pipeline: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		srv := a.newOpsServer(addr)
		g.Go(func() error {
			slog.Info("ops server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.controller.Stop(stopCtx); err != nil {
			slog.Warn("pipeline stop error", "err", err)
		}
		return nil
	})

	slog.Info("app running", "state", a.controller.State().String())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newOpsServer builds the operational HTTP server: /metrics plus the
// health endpoints, all behind the observe middleware.
func (a *App) newOpsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.newHealthHandler().Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// newHealthHandler assembles the readiness checks: the pipeline must have a
// loaded model, the display link must be up, and the translator breaker (if
// any) must not be open.
func (a *App) newHealthHandler() *health.Handler {
	checkers := []health.Checker{
		{
			Name: "pipeline",
			Check: func(context.Context) error {
				state := a.controller.State()
				switch state {
				case pipeline.StateReady, pipeline.StateRunning, pipeline.StateStopping:
					return nil
				default:
					return fmt.Errorf("pipeline is %s", state)
				}
			},
		},
		{
			Name: "display_link",
			Check: func(context.Context) error {
				if !a.comps.Link.Connected() {
					return errors.New("bridge disconnected")
				}
				return nil
			},
		},
	}
	if a.translator != nil {
		checkers = append(checkers, health.Checker{
			Name: "translator",
			Check: func(context.Context) error {
				if s := a.translator.State(); s == resilience.StateOpen {
					return errors.New("circuit breaker is open")
				}
				return nil
			},
		})
	}
	return health.New(checkers...)
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// slogLevel converts a config log level to a slog level.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
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
