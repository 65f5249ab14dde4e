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

// ValidTranslatorProviders lists known standalone translator providers.
// Used by [Validate] to warn about unrecognised names.
var ValidTranslatorProviders = []string{"anyllm"}

// ValidTranslatorBackends lists known LLM backends for the anyllm translator.
var ValidTranslatorBackends = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.FrameBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_bytes %d must not be negative", cfg.Audio.FrameBytes))
	}
	if cfg.Audio.FrameBytes%2 != 0 {
		errs = append(errs, fmt.Errorf("audio.frame_bytes %d must be even (16-bit samples)", cfg.Audio.FrameBytes))
	}

	// Model
	if cfg.Model.Filename == "" {
		errs = append(errs, errors.New("model.filename is required"))
	}
	if cfg.Model.MinBytes < 0 {
		errs = append(errs, fmt.Errorf("model.min_bytes %d must not be negative", cfg.Model.MinBytes))
	}
	if cfg.Model.DownloadURL == "" && cfg.Model.BundledPath == "" {
		slog.Warn("model has no download_url or bundled_path; startup fails unless the model is already cached")
	}

	// Display
	if cfg.Display.Width < 0 {
		errs = append(errs, fmt.Errorf("display.width %d must not be negative", cfg.Display.Width))
	}
	if cfg.Display.Lines < 0 {
		errs = append(errs, fmt.Errorf("display.lines %d must not be negative", cfg.Display.Lines))
	}

	// Device
	if cfg.Device.BridgeURL == "" {
		errs = append(errs, errors.New("device.bridge_url is required"))
	}

	// Translator
	if cfg.Translator.Provider != "" {
		if !slices.Contains(ValidTranslatorProviders, cfg.Translator.Provider) {
			slog.Warn("unknown translator provider — may be a typo or third-party provider",
				"name", cfg.Translator.Provider,
				"known", ValidTranslatorProviders,
			)
		}
		if cfg.Translator.Backend != "" && !slices.Contains(ValidTranslatorBackends, cfg.Translator.Backend) {
			slog.Warn("unknown translator backend — may be a typo",
				"name", cfg.Translator.Backend,
				"known", ValidTranslatorBackends,
			)
		}
		if cfg.Translator.Model == "" {
			errs = append(errs, errors.New("translator.model is required when translator.provider is set"))
		}
		if cfg.Model.Translate {
			slog.Warn("model.translate and translator.provider are both set; the standalone translator will be idle")
		}
	} else if !cfg.Model.Translate {
		slog.Warn("model.translate is off and no standalone translator is configured; captions will show untranslated text")
	}

	// Captions
	if cfg.Captions.SimilarityThreshold < 0 || cfg.Captions.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("captions.similarity_threshold %.2f is out of range [0, 1]", cfg.Captions.SimilarityThreshold))
	}

	// Archive
	if cfg.Archive.PostgresDSN == "" {
		slog.Warn("archive.postgres_dsn is empty; captions are kept in memory only")
	}

	return errors.Join(errs...)
}
