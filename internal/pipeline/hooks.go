package pipeline

// Hooks carries optional callbacks invoked on pipeline lifecycle events.
// Any field may be nil. Callbacks run on pipeline goroutines and must not
// block; they must not call back into the Controller.
type Hooks struct {
	// OnStart fires when a capture session begins.
	OnStart func(sessionID string)

	// OnStop fires when a capture session ends, however it ended.
	OnStop func(sessionID string)

	// OnError fires for every pipeline error, fatal or not, with the stage
	// that produced it ("audio", "inference", "translate", "send", "archive").
	OnError func(stage string, err error)
}

func (h Hooks) start(sessionID string) {
	if h.OnStart != nil {
		h.OnStart(sessionID)
	}
}

func (h Hooks) stop(sessionID string) {
	if h.OnStop != nil {
		h.OnStop(sessionID)
	}
}

func (h Hooks) error(stage string, err error) {
	if h.OnError != nil {
		h.OnError(stage, err)
	}
}
