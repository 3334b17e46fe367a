// Package registry builds provider.Provider instances from configuration
// and caches them so agents sharing a model configuration share a client.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/provider/mock"
)

// ErrMissingAPIKey is returned when a remote provider has no credential.
var ErrMissingAPIKey = errors.New("missing API key")

// Factory creates a provider from a resolved config.
type Factory func(ctx context.Context, cfg provider.Config) (provider.Provider, error)

// defaultKeyEnv lists where each provider type looks for its API key when
// the config names no variable. The first non-empty variable wins.
var defaultKeyEnv = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Registry manages provider creation and caching.
type Registry struct {
	mu        sync.RWMutex
	cache     map[string]provider.Provider
	factories map[string]Factory
	getenv    func(string) string
}

// New creates a Registry with the built-in factories registered.
func New() *Registry {
	r := &Registry{
		cache:     make(map[string]provider.Provider),
		factories: make(map[string]Factory),
		getenv:    os.Getenv,
	}
	r.factories["mock"] = mockFactory
	r.factories["anthropic"] = anthropicFactory
	r.factories["gemini"] = geminiFactory
	return r
}

// Register adds or replaces the factory for a provider type.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// SetGetenv overrides environment lookup, mainly for tests.
func (r *Registry) SetGetenv(fn func(string) string) {
	r.mu.Lock()
	r.getenv = fn
	r.mu.Unlock()
}

// Get returns the provider for cfg, creating and caching it on first use.
// Remote providers fail here when their API key cannot be resolved.
func (r *Registry) Get(ctx context.Context, cfg provider.Config) (provider.Provider, error) {
	key := cacheKey(cfg)

	r.mu.RLock()
	if p, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	factory, ok := r.factories[cfg.Provider]
	getenv := r.getenv
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider registry: unknown provider type %q", cfg.Provider)
	}

	cfg.APIKey = resolveKey(cfg, getenv)
	if _, remote := defaultKeyEnv[cfg.Provider]; remote && cfg.APIKey == "" {
		return nil, fmt.Errorf("provider registry: %s: %w (set %s)", cfg, ErrMissingAPIKey, strings.Join(KeyEnvNames(cfg), " or "))
	}

	p, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider registry: create %s: %w", cfg, err)
	}

	r.mu.Lock()
	if existing, ok := r.cache[key]; ok {
		p = existing
	} else {
		r.cache[key] = p
	}
	r.mu.Unlock()
	return p, nil
}

// InvalidateCache clears all cached providers.
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	r.cache = make(map[string]provider.Provider)
	r.mu.Unlock()
}

// KeyEnvNames lists the environment variables cfg reads its API key from.
func KeyEnvNames(cfg provider.Config) []string {
	if cfg.APIKeyEnv != "" {
		return []string{cfg.APIKeyEnv}
	}
	return defaultKeyEnv[cfg.Provider]
}

func resolveKey(cfg provider.Config, getenv func(string) string) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	for _, name := range KeyEnvNames(cfg) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func cacheKey(cfg provider.Config) string {
	return fmt.Sprintf("%s|%s|%g|%d|%s|%s|%s",
		cfg.Provider, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.BaseURL, cfg.APIKeyEnv, cfg.Script)
}

// Built-in factory functions

func mockFactory(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	if cfg.Script == "" {
		return mock.New(), nil
	}
	scenario, err := mock.LoadScenario(cfg.Script)
	if err != nil {
		return nil, err
	}
	return mock.FromScenario(scenario), nil
}

func anthropicFactory(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	return provider.NewAnthropicProvider(provider.AnthropicConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		MaxRetries:  2,
	}), nil
}

func geminiFactory(ctx context.Context, cfg provider.Config) (provider.Provider, error) {
	return provider.NewGeminiProvider(ctx, provider.GeminiConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
}
