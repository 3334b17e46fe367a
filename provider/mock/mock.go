// Package mock provides a scripted AI provider for testing and offline runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/switchboard/provider"
)

const defaultResponse = "Task acknowledged. Working on it."

// ErrExhausted is returned when a non-looping script has no steps left.
var ErrExhausted = errors.New("mock: script exhausted")

// Step defines a single scripted reply.
type Step struct {
	Content   string              `yaml:"content" json:"content"`
	ToolCalls []provider.ToolCall `yaml:"tool_calls,omitempty" json:"tool_calls,omitempty"`
	Error     string              `yaml:"error,omitempty" json:"error,omitempty"`
	Delay     time.Duration       `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// Scenario is a named sequence of steps loadable from YAML.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
	Loop        bool   `yaml:"loop,omitempty" json:"loop,omitempty"`
}

// LoadScenario reads a Scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", path, err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", path)
	}
	return &scenario, nil
}

// Request is one recorded Chat call.
type Request struct {
	Messages []provider.Message
	Tools    []provider.ToolDef
}

// MockProvider implements provider.Provider by replaying scripted steps.
// It records every request and is safe for concurrent use.
type MockProvider struct {
	mu       sync.Mutex
	steps    []Step
	loop     bool
	idx      int
	requests []Request
}

// New creates a MockProvider that cycles through the given text responses.
// With no responses it always answers with a fixed acknowledgement.
func New(responses ...string) *MockProvider {
	steps := make([]Step, len(responses))
	for i, r := range responses {
		steps[i] = Step{Content: r}
	}
	return &MockProvider{steps: steps, loop: true}
}

// NewScripted creates a MockProvider from steps. If loop is false, Chat
// returns ErrExhausted once every step has been consumed.
func NewScripted(steps []Step, loop bool) *MockProvider {
	return &MockProvider{steps: steps, loop: loop}
}

// FromScenario creates a MockProvider from a loaded scenario.
func FromScenario(s *Scenario) *MockProvider {
	return NewScripted(s.Steps, s.Loop)
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat records the request and returns the next scripted step.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message, tools []provider.ToolDef) (*provider.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Messages: append([]provider.Message(nil), messages...),
		Tools:    append([]provider.ToolDef(nil), tools...),
	})
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return &provider.Response{Content: defaultResponse}, nil
	}
	if m.idx >= len(m.steps) {
		if !m.loop {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: all %d steps consumed", ErrExhausted, len(m.steps))
		}
		m.idx = 0
	}
	step := m.steps[m.idx]
	m.idx++
	m.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Error != "" {
		return nil, errors.New(step.Error)
	}
	return &provider.Response{
		Content:   step.Content,
		ToolCalls: step.ToolCalls,
		Usage:     provider.Usage{OutputTokens: len(step.Content)},
	}, nil
}

// Requests returns a copy of every recorded request, oldest first.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns how many times Chat has been invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Remaining returns how many unconsumed steps remain.
func (m *MockProvider) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem := len(m.steps) - m.idx
	if rem < 0 {
		return 0
	}
	return rem
}
