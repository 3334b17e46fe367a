package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTavily_RequiresKey(t *testing.T) {
	_, err := NewTavily(TavilyConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestTavily_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req tavilyRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "q3 earnings", req.Query)
		assert.Equal(t, 2, req.MaxResults)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"query": req.Query,
			"results": []map[string]any{
				{"title": "A", "url": "https://a.example", "content": "alpha", "score": 0.9},
				{"title": "B", "url": "https://b.example", "content": "beta", "score": 0.5},
				{"title": "C", "url": "https://c.example", "content": "gamma", "score": 0.1},
			},
		})
	}))
	defer srv.Close()

	tv, err := NewTavily(TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL + "/", MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, "tavily", tv.Name())

	results, err := tv.Search(context.Background(), " q3 earnings ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{Title: "A", URL: "https://a.example", Content: "alpha", Score: 0.9}, results[0])
}

func TestTavily_SearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv, err := NewTavily(TavilyConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = tv.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	_, err = tv.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	assert.Equal(t,
		"Web search unavailable: missing TAVILY_API_KEY. Please set this environment variable to enable live search.\nQuery: weather",
		Unavailable("TAVILY_API_KEY", "weather"))
}
