package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/switchboard/plugin"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/search"
)

// SearchTools returns the web agent's tool set: the live search tool when a
// backend is configured, otherwise the placeholder that explains how to
// enable it.
func SearchTools(backend search.Provider, credentialEnv string) []plugin.Tool {
	if backend != nil {
		return []plugin.Tool{&WebSearchTool{Backend: backend}}
	}
	return []plugin.Tool{&PlaceholderSearchTool{CredentialEnv: credentialEnv}}
}

func searchParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search query"},
		},
		"required": []string{"query"},
	}
}

// WebSearchTool runs a live web search.
type WebSearchTool struct {
	Backend search.Provider
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs and snippets."
}
func (t *WebSearchTool) Definition() provider.ToolDef {
	return provider.ToolDef{Name: t.Name(), Description: t.Description(), Parameters: searchParams()}
}
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	results, err := t.Backend.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	return results, nil
}

// PlaceholderSearchTool stands in for web search when no credential is set.
// It never fails.
type PlaceholderSearchTool struct {
	CredentialEnv string
}

func (t *PlaceholderSearchTool) Name() string { return "web_search_placeholder" }
func (t *PlaceholderSearchTool) Description() string {
	return "Fallback tool when web search is not configured."
}
func (t *PlaceholderSearchTool) Definition() provider.ToolDef {
	return provider.ToolDef{Name: t.Name(), Description: t.Description(), Parameters: searchParams()}
}
func (t *PlaceholderSearchTool) Execute(_ context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	env := t.CredentialEnv
	if env == "" {
		env = "TAVILY_API_KEY"
	}
	return search.Unavailable(env, strings.TrimSpace(query)), nil
}
