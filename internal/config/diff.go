package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DisplayChanged is true when the wrap width or line budget changed.
	// Applies to the next emitted caption.
	DisplayChanged bool
	NewDisplay     DisplayConfig

	// CaptionsChanged is true when the similarity threshold changed.
	// Applies from the next capture session.
	CaptionsChanged bool
	NewCaptions     CaptionsConfig
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.DisplayChanged || d.CaptionsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; model, device,
// and archive settings require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Display != new.Display {
		d.DisplayChanged = true
		d.NewDisplay = new.Display
	}

	if old.Captions != new.Captions {
		d.CaptionsChanged = true
		d.NewCaptions = new.Captions
	}

	return d
}
