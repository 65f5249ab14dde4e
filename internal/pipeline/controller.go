package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/danielacorner/frame-host-2/internal/archive"
	"github.com/danielacorner/frame-host-2/internal/audio"
	"github.com/danielacorner/frame-host-2/internal/caption"
	"github.com/danielacorner/frame-host-2/internal/observe"
	"github.com/danielacorner/frame-host-2/pkg/device"
	"github.com/danielacorner/frame-host-2/pkg/transcribe"
	"github.com/danielacorner/frame-host-2/pkg/translate"
)

var (
	// ErrNotReady is returned by Start when the pipeline is not in the ready
	// state (model missing, display disconnected, or not yet initialised).
	ErrNotReady = errors.New("pipeline: not ready")

	// ErrModelLoad wraps speech-model loading failures reported by Init.
	ErrModelLoad = errors.New("pipeline: model load failed")
)

// Option configures a Controller.
type Option func(*Controller)

// WithTranslator sets a standalone translation step, used when the speech
// model emits source-language text only.
func WithTranslator(tr translate.Translator) Option {
	return func(c *Controller) { c.translator = tr }
}

// WithArchive sets the caption archive. Sessions and captions are recorded
// best-effort; archive failures never interrupt captioning.
func WithArchive(a archive.Archive) Option {
	return func(c *Controller) { c.arch = a }
}

// WithMetrics sets the metric instruments the pipeline records to.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithHooks sets lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// WithWrap overrides the display text budget.
func WithWrap(width, maxLines int) Option {
	return func(c *Controller) {
		c.wrapWidth = width
		c.wrapLines = maxLines
	}
}

// WithFrameBytes overrides the audio frame size handed to the speech model.
func WithFrameBytes(n int) Option {
	return func(c *Controller) { c.frameBytes = n }
}

// WithSimilarityThreshold enables fuzzy near-duplicate caption suppression.
func WithSimilarityThreshold(threshold float64) Option {
	return func(c *Controller) { c.similarity = threshold }
}

// WithLanguages sets the source and target language codes passed to the
// standalone translator. The speech model's own language setting is
// configured on the transcriber, not here.
func WithLanguages(source, target string) Option {
	return func(c *Controller) {
		c.sourceLang = source
		c.targetLang = target
	}
}

// Controller owns the capture loop and the pipeline lifecycle. All exported
// methods are safe for concurrent use.
type Controller struct {
	source audio.Source
	link   device.Link
	loader transcribe.Loader

	translator translate.Translator
	arch       archive.Archive
	metrics    *observe.Metrics
	hooks      Hooks

	wrapWidth  int
	wrapLines  int
	frameBytes int
	similarity float64
	sourceLang string
	targetLang string

	mu          sync.Mutex
	state       State
	starting    bool
	transcriber transcribe.Transcriber
	differ      *caption.Differ
	sessionID   string
	cancelRun   context.CancelFunc
	runDone     chan struct{}
	subs        []func(State)
}

// New creates a Controller in the initializing state. Call Init before Start.
func New(source audio.Source, link device.Link, loader transcribe.Loader, opts ...Option) *Controller {
	c := &Controller{
		source:     source,
		link:       link,
		loader:     loader,
		wrapWidth:  caption.DefaultWrapWidth,
		wrapLines:  caption.DefaultMaxLines,
		frameBytes: audio.DefaultFrameBytes,
		state:      StateInitializing,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a callback invoked on every state transition with the
// new state. Callbacks run synchronously on pipeline goroutines and must not
// call back into the Controller.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// SetWrap changes the display text budget. Applies to the next emitted
// caption, including mid-session.
func (c *Controller) SetWrap(width, maxLines int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrapWidth = width
	c.wrapLines = maxLines
}

// SetSimilarityThreshold changes fuzzy caption deduplication. Takes effect
// from the next capture session.
func (c *Controller) SetSimilarityThreshold(threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.similarity = threshold
}

// Init loads the speech model and checks the display link. On model failure
// the pipeline enters the terminal model-error state and the returned error
// wraps [ErrModelLoad]. When the link implements [device.Notifier], Init
// registers for connection-change events so the pipeline tracks link health
// for its whole lifetime.
func (c *Controller) Init(ctx context.Context) error {
	t, err := c.loader(ctx)
	if err != nil {
		c.setState(StateModelError)
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	c.mu.Lock()
	c.transcriber = t
	c.mu.Unlock()

	if n, ok := c.link.(device.Notifier); ok {
		n.OnConnectionChange(c.onConnectionChange)
	}

	if c.link.Connected() {
		c.setState(StateReady)
	} else {
		c.setState(StateDisconnected)
	}
	return nil
}

// Start begins a capture session. It only transitions from the ready state;
// calling Start while a session is already running is a no-op, and any other
// state returns [ErrNotReady]. The session runs until Stop is called, the
// audio source closes, the display link drops, or ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateRunning || c.state == StateStopping || c.starting:
		c.mu.Unlock()
		slog.Debug("start ignored, session already live")
		return nil
	case c.state != StateReady:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotReady, state)
	}
	c.starting = true
	c.mu.Unlock()

	// Opening the source can dial a network transport. The mutex stays free
	// while it does, so state reads and link callbacks never stall behind
	// the dial; the starting flag keeps a second Start out in the meantime.
	chunker, err := audio.Open(ctx, c.source, audio.WithFrameBytes(c.frameBytes))
	if err != nil {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		c.hooks.error("audio", err)
		return fmt.Errorf("pipeline: open audio: %w", err)
	}

	sessionID := ""
	if c.arch != nil {
		id, err := c.arch.BeginSession(ctx, time.Now())
		if err != nil {
			slog.Warn("archive session not recorded", "err", err)
			c.hooks.error("archive", err)
		} else {
			sessionID = id
		}
	}

	c.mu.Lock()
	c.starting = false
	if c.state != StateReady {
		// The link dropped while the source was opening.
		state := c.state
		c.mu.Unlock()
		if err := chunker.Close(); err != nil {
			slog.Warn("audio source close failed", "err", err)
		}
		if c.arch != nil && sessionID != "" {
			if err := c.arch.EndSession(ctx, sessionID, time.Now()); err != nil {
				slog.Warn("archive session not closed", "err", err)
			}
		}
		return fmt.Errorf("%w: state %s", ErrNotReady, state)
	}

	var differOpts []caption.DifferOption
	if c.similarity > 0 {
		differOpts = append(differOpts, caption.WithSimilarityThreshold(c.similarity))
	}
	c.differ = caption.NewDiffer(differOpts...)
	c.sessionID = sessionID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.runDone = make(chan struct{})
	c.state = StateRunning
	subs := append([]func(State){}, c.subs...)
	c.mu.Unlock()

	c.notify(subs, StateRunning)
	c.metrics.ActiveSessions.Add(ctx, 1)
	c.hooks.start(sessionID)
	slog.Info("capture session started", "session", sessionID)

	go c.run(runCtx, chunker)
	return nil
}

// Stop ends the current capture session and waits for the loop to drain its
// current frame. Stopping an idle pipeline is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	subs := append([]func(State){}, c.subs...)
	cancel := c.cancelRun
	done := c.runDone
	c.mu.Unlock()

	c.notify(subs, StateStopping)
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline: stop: %w", ctx.Err())
	}
}

// Close stops any running session and releases the speech model.
func (c *Controller) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		slog.Warn("session did not stop cleanly", "err", err)
	}

	c.mu.Lock()
	t := c.transcriber
	c.transcriber = nil
	c.mu.Unlock()

	if t != nil {
		return t.Close()
	}
	return nil
}

// run is the capture loop. It exits on stop, context cancellation, source
// close, or link loss; finish handles the terminal transition in all cases.
func (c *Controller) run(ctx context.Context, chunker *audio.Chunker) {
	defer c.finish(chunker)

	for {
		frame, err := chunker.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				slog.Info("audio source closed")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			default:
				slog.Error("audio read failed", "err", err)
				c.metrics.RecordPipelineError(ctx, "audio")
				c.hooks.error("audio", err)
			}
			return
		}

		c.metrics.FramesProcessed.Add(ctx, 1)

		source, translated, ok := c.processFrame(ctx, frame)
		if !ok {
			continue
		}

		if !c.dispatch(ctx, source, translated) {
			return
		}
	}
}

// processFrame runs one audio frame through the speech model and the
// optional translator, returning the source-language text and its
// translation. The last return value is false when the frame should be
// skipped (transient inference failure).
func (c *Controller) processFrame(ctx context.Context, frame audio.Frame) (source, translated string, ok bool) {
	start := time.Now()
	res, err := c.transcriber.Process(ctx, frame)
	c.metrics.InferenceDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return "", "", false
		}
		slog.Warn("inference failed, skipping frame", "err", err)
		c.metrics.RecordPipelineError(ctx, "inference")
		c.hooks.error("inference", err)
		return "", "", false
	}
	if res == nil {
		// Silence. An empty caption lets the differ decide whether the
		// display needs clearing.
		return "", "", true
	}

	translated = res.Translated()
	if c.translator != nil && res.Translation == "" && res.Text != "" {
		tStart := time.Now()
		out, err := c.translator.Translate(ctx, res.Text, c.sourceLang, c.targetLang)
		c.metrics.TranslationDuration.Record(ctx, time.Since(tStart).Seconds())
		if err != nil {
			slog.Warn("translation failed, falling back to source text", "err", err)
			c.metrics.RecordPipelineError(ctx, "translate")
			c.hooks.error("translate", err)
		} else if out != "" {
			translated = out
		}
	}
	return res.Text, translated, true
}

// dispatch feeds the translated text through the differ and sends the
// resulting caption or clear to the display. Returns false when the loop
// must terminate (link lost).
func (c *Controller) dispatch(ctx context.Context, source, translated string) bool {
	decision := c.differ.Process(translated)
	c.metrics.RecordCaption(ctx, decision.Action.String())

	switch decision.Action {
	case caption.ActionSuppress:
		return true

	case caption.ActionClear:
		return c.send(ctx, device.Clear())

	case caption.ActionEmit:
		c.mu.Lock()
		width, lines := c.wrapWidth, c.wrapLines
		c.mu.Unlock()
		wrapped := caption.Wrap(decision.Text, width, lines)
		if wrapped == "" {
			return true
		}
		if !c.send(ctx, device.PlainText(wrapped)) {
			return false
		}
		c.archiveCaption(ctx, source, wrapped)
		return true
	}
	return true
}

// send delivers one framed message. A send failure on a dropped link
// terminates the loop; other failures are logged and skipped.
func (c *Controller) send(ctx context.Context, msg device.Message) bool {
	start := time.Now()
	err := c.link.Send(ctx, msg)
	c.metrics.SendDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	c.metrics.RecordPipelineError(ctx, "send")
	c.hooks.error("send", err)
	if !c.link.Connected() {
		slog.Error("display link lost", "err", err)
		return false
	}
	slog.Warn("display send failed", "err", err)
	return true
}

func (c *Controller) archiveCaption(ctx context.Context, source, translated string) {
	c.mu.Lock()
	arch, sessionID := c.arch, c.sessionID
	c.mu.Unlock()
	if arch == nil || sessionID == "" {
		return
	}

	err := arch.WriteCaption(ctx, archive.Caption{
		SessionID:  sessionID,
		Source:     source,
		Translated: translated,
		Timestamp:  time.Now(),
	})
	if err != nil {
		slog.Warn("caption not archived", "err", err)
		c.hooks.error("archive", err)
	}
}

// finish tears a session down: closes the audio source, clears the display
// best-effort, closes the archive session, and settles into ready or
// disconnected.
func (c *Controller) finish(chunker *audio.Chunker) {
	if err := chunker.Close(); err != nil {
		slog.Warn("audio source close failed", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Don't leave a stale caption on the glasses after the session ends.
	if c.differ.Last() != "" && c.link.Connected() {
		if err := c.link.Send(ctx, device.Clear()); err != nil {
			slog.Debug("final display clear failed", "err", err)
		}
	}

	c.mu.Lock()
	sessionID := c.sessionID
	arch := c.arch
	c.sessionID = ""
	c.mu.Unlock()

	if arch != nil && sessionID != "" {
		if err := arch.EndSession(ctx, sessionID, time.Now()); err != nil {
			slog.Warn("archive session not closed", "err", err)
		}
	}
	c.metrics.ActiveSessions.Add(ctx, -1)
	c.hooks.stop(sessionID)

	c.mu.Lock()
	next := StateReady
	if !c.link.Connected() {
		next = StateDisconnected
	}
	c.state = next
	subs := append([]func(State){}, c.subs...)
	done := c.runDone
	c.mu.Unlock()

	c.notify(subs, next)
	slog.Info("capture session ended", "session", sessionID, "state", next.String())
	close(done)
}

// onConnectionChange tracks display link health. A drop during a session
// cancels the capture loop; finish then settles into disconnected.
func (c *Controller) onConnectionChange(connected bool) {
	c.mu.Lock()
	switch {
	case !connected && c.state == StateRunning:
		cancel := c.cancelRun
		c.mu.Unlock()
		slog.Warn("display link dropped during session")
		cancel()
		return
	case !connected && c.state == StateReady:
		c.state = StateDisconnected
	case connected && c.state == StateDisconnected:
		c.state = StateReady
	default:
		c.mu.Unlock()
		return
	}
	next := c.state
	subs := append([]func(State){}, c.subs...)
	c.mu.Unlock()
	c.notify(subs, next)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	subs := append([]func(State){}, c.subs...)
	c.mu.Unlock()
	c.notify(subs, s)
}

func (c *Controller) notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
