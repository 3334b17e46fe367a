// Package search provides web search backends for the web agent.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTavilyBaseURL = "https://api.tavily.com"
	// DefaultMaxResults bounds the results returned per query.
	DefaultMaxResults = 5
)

// ErrNoAPIKey is returned when a search client is built without a credential.
var ErrNoAPIKey = errors.New("search: missing API key")

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Provider runs web searches.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// TavilyConfig holds configuration for the Tavily client.
type TavilyConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

// Tavily implements Provider using the Tavily search API.
type Tavily struct {
	config TavilyConfig
}

// NewTavily creates a Tavily client. It fails without an API key.
func NewTavily(cfg TavilyConfig) (*Tavily, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTavilyBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Tavily{config: cfg}, nil
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
}

// Search runs query and returns at most MaxResults hits.
func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("tavily: query is required")
	}

	data, err := json.Marshal(tavilyRequest{Query: query, MaxResults: t.config.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}
	url := strings.TrimRight(t.config.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)

	resp, err := t.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("tavily: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out tavilyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	if len(out.Results) > t.config.MaxResults {
		out.Results = out.Results[:t.config.MaxResults]
	}
	if out.Results == nil {
		out.Results = []Result{}
	}
	return out.Results, nil
}

// Unavailable returns the text the placeholder search tool answers with
// when no search credential is configured.
func Unavailable(envVar, query string) string {
	return fmt.Sprintf("Web search unavailable: missing %s. Please set this environment variable to enable live search.\nQuery: %s", envVar, query)
}
