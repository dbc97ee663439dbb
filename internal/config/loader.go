package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the known LLM provider names. Used by [Validate]
// to warn about likely typos without rejecting third-party providers.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Provider.Name == "" {
		errs = append(errs, fmt.Errorf("provider.name is required"))
	} else {
		warnUnknownProvider(cfg.Provider.Name)
	}
	for i, fb := range cfg.Provider.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("provider.fallbacks[%d].name is required", i))
		} else {
			warnUnknownProvider(fb.Name)
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("provider.fallbacks[%d]: fallbacks cannot nest", i))
		}
	}

	if cfg.Game.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("game.max_turns must not be negative"))
	}
	if cfg.Game.KeepLast < 0 {
		errs = append(errs, fmt.Errorf("game.keep_last must not be negative"))
	}
	if cfg.Game.MaxTurns > 0 && cfg.Game.KeepLast > cfg.Game.MaxTurns {
		errs = append(errs, fmt.Errorf("game.keep_last (%d) must not exceed game.max_turns (%d)", cfg.Game.KeepLast, cfg.Game.MaxTurns))
	}
	if cfg.Game.ReplyTimeout < 0 {
		errs = append(errs, fmt.Errorf("game.reply_timeout must not be negative"))
	}
	if cfg.Game.Temperature < 0 || cfg.Game.Temperature > 2 {
		errs = append(errs, fmt.Errorf("game.temperature %.2f is out of range [0, 2]", cfg.Game.Temperature))
	}
	if cfg.Game.CharactersPath == "" {
		errs = append(errs, fmt.Errorf("game.characters_path is required"))
	}

	if cfg.Save.Backend != "" && !cfg.Save.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("save.backend %q is invalid; valid values: memory, postgres", cfg.Save.Backend))
	}
	if cfg.Save.Backend == SavePostgres && cfg.Save.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("save.postgres_dsn is required when save.backend is postgres"))
	}
	if cfg.Save.AutosaveInterval < 0 {
		errs = append(errs, fmt.Errorf("save.autosave_interval must not be negative"))
	}
	if cfg.Save.Backend == SaveMemory && cfg.Save.AutosaveInterval > 0 {
		slog.Warn("autosave is enabled with the in-memory save backend; snapshots will not survive a restart")
	}

	return errors.Join(errs...)
}

// warnUnknownProvider logs a warning if name is not in [ValidProviderNames].
func warnUnknownProvider(name string) {
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
