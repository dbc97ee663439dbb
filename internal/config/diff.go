package config

// ConfigDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded are tracked; provider and save backend changes need a
// restart and are reported so the operator can be warned.
type ConfigDiff struct {
	// LogLevelChanged is true when server.log_level changed.
	LogLevelChanged bool

	// NewLogLevel is the level to apply when LogLevelChanged is true.
	NewLogLevel LogLevel

	// GameChanged is true when any game tuning field changed. Game tuning
	// applies to conversations opened after the reload.
	GameChanged bool

	// RestartNeeded is true when the provider or save configuration changed,
	// which cannot be applied without a restart.
	RestartNeeded bool
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GameChanged && !d.RestartNeeded
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Game != new.Game {
		d.GameChanged = true
	}

	if !providerEqual(old.Provider, new.Provider) || old.Save != new.Save {
		d.RestartNeeded = true
	}

	return d
}

// providerEqual compares two provider configs including their fallback lists.
func providerEqual(a, b ProviderConfig) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !providerEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}
