package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danielacorner/frame-host-2/internal/audio"
	"github.com/danielacorner/frame-host-2/pkg/translate"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions. Capture
// sources and standalone translators are both pluggable; the main binary
// registers the implementations it was built with and the config file picks
// one by name. Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sources     map[string]func(AudioConfig) (audio.Source, error)
	translators map[string]func(TranslatorConfig) (translate.Translator, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources:     make(map[string]func(AudioConfig) (audio.Source, error)),
		translators: make(map[string]func(TranslatorConfig) (translate.Translator, error)),
	}
}

// RegisterSource registers a capture source constructor under name,
// replacing any existing registration.
func (r *Registry) RegisterSource(name string, fn func(AudioConfig) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = fn
}

// RegisterTranslator registers a translator constructor under name,
// replacing any existing registration.
func (r *Registry) RegisterTranslator(name string, fn func(TranslatorConfig) (translate.Translator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[name] = fn
}

// SourceNames returns the names of all registered capture sources.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// CreateSource builds the capture source selected by cfg.Source. The raw
// source is wrapped in an Opus decoder when cfg.Opus is set.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	fn, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio source %q", ErrProviderNotRegistered, cfg.Source)
	}

	src, err := fn(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create audio source %q: %w", cfg.Source, err)
	}
	if cfg.Opus {
		return audio.NewOpusSource(src)
	}
	return src, nil
}

// CreateTranslator builds the translator selected by cfg.Provider.
// Returns (nil, nil) when no provider is configured.
func (r *Registry) CreateTranslator(cfg TranslatorConfig) (translate.Translator, error) {
	if cfg.Provider == "" {
		return nil, nil
	}

	r.mu.RLock()
	fn, ok := r.translators[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translator %q", ErrProviderNotRegistered, cfg.Provider)
	}

	tr, err := fn(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create translator %q: %w", cfg.Provider, err)
	}
	return tr, nil
}
