// Package provider defines the conversation message model and the model-backend
// interface that agents and the router call to generate replies.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps the role spellings seen in serialized conversations
// ("human", "ai", "developer", ...) onto Role. Unknown values map to RoleUser.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assistant", "ai", "model":
		return RoleAssistant
	case "system", "developer":
		return RoleSystem
	case "tool", "function":
		return RoleTool
	default:
		return RoleUser
	}
}

// ToolDef describes a tool the model can invoke.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ToolCall is a request from the model to invoke a tool.
type ToolCall struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
}

// Response is a completed (non-streaming) model reply.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is a model backend. Chat is the only suspension point agents
// and the router have on the model; system prompts travel as a leading
// RoleSystem message.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "gemini", "mock").
	Name() string

	// Chat sends a request and returns the complete reply.
	Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error)
}

// Config selects and parameterizes a provider. One Config is resolved per
// agent role when the orchestration graph is built.
type Config struct {
	Provider    string  `json:"provider" yaml:"provider"` // "gemini", "anthropic", "mock"
	Model       string  `json:"model,omitempty" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	APIKeyEnv   string  `json:"api_key_env,omitempty" yaml:"api_key_env"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url"`
	// Script is a YAML scenario path for the mock provider.
	Script string `json:"script,omitempty" yaml:"script"`

	// APIKey is resolved from APIKeyEnv and never read from files.
	APIKey string `json:"-" yaml:"-"`
}

// ReplyMessage converts a model reply into an assistant message.
func ReplyMessage(resp *Response) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     &resp.Usage,
	}
}

// Empty reports whether the reply carries neither text nor tool calls.
func (r *Response) Empty() bool {
	return strings.TrimSpace(r.Content) == "" && len(r.ToolCalls) == 0
}

func (c Config) String() string {
	if c.Model == "" {
		return c.Provider
	}
	return fmt.Sprintf("%s/%s", c.Provider, c.Model)
}
