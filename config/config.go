// Package config defines the switchboard application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/switchboard/provider"
)

// RouterRole names the planning model in ModelsConfig lookups.
const RouterRole = "router"

// Config is the top-level switchboard configuration.
type Config struct {
	Server       ServerConfig    `json:"server" yaml:"server"`
	Models       ModelsConfig    `json:"models" yaml:"models"`
	Search       SearchConfig    `json:"search" yaml:"search"`
	LoopGuard    LoopGuardConfig `json:"loop_guard" yaml:"loop_guard"`
	DataDir      string          `json:"data_dir" yaml:"data_dir"`
	TasksFile    string          `json:"tasks_file,omitempty" yaml:"tasks_file"`       // default <data_dir>/tasks.json
	TranscriptDB string          `json:"transcript_db,omitempty" yaml:"transcript_db"` // default <data_dir>/transcripts.db; "off" disables
	LogLevel     string          `json:"log_level" yaml:"log_level"`
	LogFormat    string          `json:"log_format" yaml:"log_format"` // "json" or "console"
	MaxSteps     int             `json:"max_steps" yaml:"max_steps"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// ModelsConfig holds the default model and per-role overrides. Roles are
// "router" and the agent ids.
type ModelsConfig struct {
	Default   provider.Config        `json:"default" yaml:"default"`
	Overrides map[string]ModelConfig `json:"overrides,omitempty" yaml:"overrides"`
}

// ModelConfig overrides selected fields of the default model for one role.
// Empty fields inherit.
type ModelConfig struct {
	Provider    string   `json:"provider,omitempty" yaml:"provider"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	APIKeyEnv   string   `json:"api_key_env,omitempty" yaml:"api_key_env"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url"`
	Script      string   `json:"script,omitempty" yaml:"script"`
}

// SearchConfig controls the web agent's search backend. When the
// credential variable is unset the placeholder tool is used.
type SearchConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // "tavily"
	APIKeyEnv  string `json:"api_key_env" yaml:"api_key_env"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url"`
}

// LoopGuardConfig controls repeated tool call detection.
type LoopGuardConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	MaxConsecutive int  `json:"max_consecutive,omitempty" yaml:"max_consecutive"`
	MaxErrors      int  `json:"max_errors,omitempty" yaml:"max_errors"`
	MaxAlternating int  `json:"max_alternating,omitempty" yaml:"max_alternating"`
	MaxNoProgress  int  `json:"max_no_progress,omitempty" yaml:"max_no_progress"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Models: ModelsConfig{
			Default: provider.Config{
				Provider:    "gemini",
				Model:       "gemini-2.5-flash",
				Temperature: 0,
			},
		},
		Search: SearchConfig{
			Provider:   "tavily",
			APIKeyEnv:  "TAVILY_API_KEY",
			MaxResults: 5,
		},
		LoopGuard: LoopGuardConfig{Enabled: true},
		DataDir:   "./data",
		LogLevel:  "info",
		LogFormat: "console",
		MaxSteps:  50,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and names.
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.Models.Default.Provider == "" {
		return fmt.Errorf("models.default.provider is required")
	}
	for role := range c.Models.Overrides {
		if !knownRole(role) {
			return fmt.Errorf("models.overrides: unknown role %q", role)
		}
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 20 {
		return fmt.Errorf("search.max_results must be between 1 and 20, got %d", c.Search.MaxResults)
	}
	return nil
}

// ModelFor resolves the model config for role: the default with the
// role's override applied.
func (c *Config) ModelFor(role string) provider.Config {
	out := c.Models.Default
	o, ok := c.Models.Overrides[role]
	if !ok {
		return out
	}
	if o.Provider != "" && o.Provider != out.Provider {
		// A different provider does not inherit the default's model or key.
		out = provider.Config{Provider: o.Provider, Temperature: out.Temperature, MaxTokens: out.MaxTokens}
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.Temperature != nil {
		out.Temperature = *o.Temperature
	}
	if o.MaxTokens > 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.APIKeyEnv != "" {
		out.APIKeyEnv = o.APIKeyEnv
	}
	if o.BaseURL != "" {
		out.BaseURL = o.BaseURL
	}
	if o.Script != "" {
		out.Script = o.Script
	}
	return out
}

// TasksPath returns the task file location.
func (c *Config) TasksPath() string {
	if c.TasksFile != "" {
		return c.TasksFile
	}
	return filepath.Join(c.DataDir, "tasks.json")
}

// TranscriptPath returns the transcript database location, or "" when
// transcripts are disabled.
func (c *Config) TranscriptPath() string {
	switch c.TranscriptDB {
	case "off":
		return ""
	case "":
		return filepath.Join(c.DataDir, "transcripts.db")
	}
	return c.TranscriptDB
}

func knownRole(role string) bool {
	switch role {
	case RouterRole, "todo", "web", "notes", "finance":
		return true
	}
	return false
}
