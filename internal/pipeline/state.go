// Package pipeline wires microphone audio, the speech model, caption
// diffing, display formatting, and the device link into one controlled
// translation loop.
package pipeline

// State describes the pipeline lifecycle.
//
// Transitions:
//
//	Initializing → ModelError | Disconnected | Ready
//	Ready        → Running | Disconnected
//	Running      → Stopping | Ready | Disconnected
//	Stopping     → Ready | Disconnected
//	Disconnected → Ready
type State int

const (
	// StateInitializing is the state before the model has loaded and the
	// display link has been checked.
	StateInitializing State = iota

	// StateModelError is terminal: the speech model could not be loaded.
	StateModelError

	// StateDisconnected means the display link is down. The pipeline cannot
	// start until the link reconnects.
	StateDisconnected

	// StateReady means the model is loaded and the display link is up.
	StateReady

	// StateRunning means the capture loop is live.
	StateRunning

	// StateStopping means a stop was requested and the capture loop is
	// draining its current frame.
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateModelError:
		return "model_error"
	case StateDisconnected:
		return "disconnected"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
