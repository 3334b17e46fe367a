package provider

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Part is one typed element of structured message content.
type Part struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// ContentKind classifies the shape of a message's primary content.
type ContentKind int

const (
	// KindEmpty means no usable primary content: an empty or blank string
	// and no parts. The message may still carry fallback text.
	KindEmpty ContentKind = iota
	// KindText means the content is a non-blank plain string.
	KindText
	// KindParts means the content is a non-empty list of typed parts.
	KindParts
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindParts:
		return "parts"
	default:
		return "empty"
	}
}

// Message is a single turn in a conversation.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       Role       `json:"role"`
	Name       string     `json:"name,omitempty"`
	Content    string     `json:"content"`
	Parts      []Part     `json:"parts,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool results
	IsError    bool       `json:"is_error,omitempty"`     // for tool results
	Usage      *Usage     `json:"usage,omitempty"`

	// Fallback holds text some producers place outside the primary content
	// field, in priority order. Normalize promotes the first non-blank entry.
	Fallback []string `json:"-"`
}

// Kind reports the shape of the message's primary content.
func (m Message) Kind() ContentKind {
	switch {
	case len(m.Parts) > 0:
		return KindParts
	case len(trimSpace(m.Content)) > 0:
		return KindText
	default:
		return KindEmpty
	}
}

// Text returns the message content as plain text.
func (m Message) Text() string {
	if len(m.Parts) > 0 {
		return ContentToText(m.Parts)
	}
	return m.Content
}

// HasToolCalls reports whether an assistant message requests tool calls.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// fallbackPaths lists where serialized messages from other runtimes keep
// text when their primary content is empty, highest priority first.
var fallbackPaths = []string{
	"message",
	"text",
	"kwargs.content",
	"kwargs.message",
	"kwargs.text",
	"additional_kwargs.content",
}

// UnmarshalJSON accepts content as a string, a list of parts (strings or
// typed objects) or a single part object, and records fallback text.
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("message: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("message: expected object, got %s", root.Type)
	}

	out := Message{
		ID:         root.Get("id").String(),
		Name:       root.Get("name").String(),
		ToolCallID: root.Get("tool_call_id").String(),
		IsError:    root.Get("is_error").Bool(),
	}
	role := root.Get("role")
	if !role.Exists() {
		role = root.Get("type")
	}
	out.Role = ParseRole(role.String())

	content := root.Get("content")
	switch {
	case content.Type == gjson.String:
		out.Content = content.String()
	case content.IsArray():
		out.Parts = partsFrom(content)
	case content.IsObject():
		out.Parts = []Part{partFrom(content)}
	}
	if parts := root.Get("parts"); parts.IsArray() {
		out.Parts = append(out.Parts, partsFrom(parts)...)
	}

	if calls := root.Get("tool_calls"); calls.IsArray() {
		if err := json.Unmarshal([]byte(calls.Raw), &out.ToolCalls); err != nil {
			return fmt.Errorf("message: tool_calls: %w", err)
		}
	}
	if usage := root.Get("usage"); usage.IsObject() {
		var u Usage
		if err := json.Unmarshal([]byte(usage.Raw), &u); err != nil {
			return fmt.Errorf("message: usage: %w", err)
		}
		out.Usage = &u
	}

	for _, path := range fallbackPaths {
		if r := root.Get(path); r.Type == gjson.String {
			out.Fallback = append(out.Fallback, r.String())
		}
	}

	*m = out
	return nil
}

func partsFrom(arr gjson.Result) []Part {
	var parts []Part
	arr.ForEach(func(_, el gjson.Result) bool {
		parts = append(parts, partFrom(el))
		return true
	})
	return parts
}

func partFrom(el gjson.Result) Part {
	if el.Type == gjson.String {
		return Part{Type: "text", Text: el.String()}
	}
	if !el.IsObject() {
		return Part{Type: "unknown", Text: el.String()}
	}
	p := Part{Type: el.Get("type").String()}
	if t := el.Get("text"); t.Exists() {
		p.Text = t.String()
		if p.Type == "" {
			p.Type = "text"
		}
	}
	if p.Type != "text" {
		if data, ok := el.Value().(map[string]any); ok {
			p.Data = data
		}
	}
	return p
}
