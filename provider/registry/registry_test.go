package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/provider/mock"
)

func emptyEnv(string) string { return "" }

func TestRegistry_MockCached(t *testing.T) {
	r := New()
	r.SetGetenv(emptyEnv)

	a, err := r.Get(context.Background(), provider.Config{Provider: "mock"})
	require.NoError(t, err)
	b, err := r.Get(context.Background(), provider.Config{Provider: "mock"})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "mock", a.Name())

	c, err := r.Get(context.Background(), provider.Config{Provider: "mock", Temperature: 0.5})
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	r.InvalidateCache()
	d, err := r.Get(context.Background(), provider.Config{Provider: "mock"})
	require.NoError(t, err)
	assert.NotSame(t, a, d)
}

func TestRegistry_MockScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - content: scripted\n"), 0o600))

	r := New()
	p, err := r.Get(context.Background(), provider.Config{Provider: "mock", Script: path})
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "scripted", resp.Content)
}

func TestRegistry_MissingKey(t *testing.T) {
	r := New()
	r.SetGetenv(emptyEnv)

	_, err := r.Get(context.Background(), provider.Config{Provider: "gemini", Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")

	_, err = r.Get(context.Background(), provider.Config{Provider: "anthropic", APIKeyEnv: "MY_KEY"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "MY_KEY")
}

func TestRegistry_ResolvesKeyFromEnv(t *testing.T) {
	r := New()
	r.SetGetenv(func(name string) string {
		if name == "GEMINI_API_KEY" {
			return "k"
		}
		return ""
	})

	var seen provider.Config
	r.Register("gemini", func(_ context.Context, cfg provider.Config) (provider.Provider, error) {
		seen = cfg
		return mock.New(), nil
	})

	_, err := r.Get(context.Background(), provider.Config{Provider: "gemini"})
	require.NoError(t, err)
	assert.Equal(t, "k", seen.APIKey)
}

func TestRegistry_UnknownType(t *testing.T) {
	_, err := New().Get(context.Background(), provider.Config{Provider: "nope"})
	assert.Error(t, err)
}

func TestRegistry_AnthropicConstructs(t *testing.T) {
	r := New()
	p, err := r.Get(context.Background(), provider.Config{Provider: "anthropic", APIKey: "x"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}
