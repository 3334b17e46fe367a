package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/state"
)

// Node runs one agent turn: it normalizes the conversation, asks the model
// for a reply under the agent's persona and returns that reply as the only
// new message.
type Node struct {
	id          state.AgentID
	personality Personality
	provider    provider.Provider
	tools       []provider.ToolDef
	logger      *zap.Logger
}

// Config holds what a Node needs. Tools may be empty.
type Config struct {
	ID          state.AgentID
	Personality Personality
	Provider    provider.Provider
	Tools       []provider.ToolDef
	Logger      *zap.Logger
}

// NewNode creates an agent node. Personality defaults to the built-in
// persona for cfg.ID.
func NewNode(cfg Config) (*Node, error) {
	if !cfg.ID.Known() {
		return nil, fmt.Errorf("agent: unknown id %q", cfg.ID)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent %s: provider is required", cfg.ID)
	}
	if cfg.Personality.SystemPrompt == "" {
		cfg.Personality = Personalities[cfg.ID]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{
		id:          cfg.ID,
		personality: cfg.Personality,
		provider:    cfg.Provider,
		tools:       cfg.Tools,
		logger:      logger.With(zap.String("agent", cfg.ID.String())),
	}, nil
}

// ID returns the agent id.
func (n *Node) ID() state.AgentID { return n.id }

// HasTools reports whether the agent is bound to any tools.
func (n *Node) HasTools() bool { return len(n.tools) > 0 }

// Info describes the node.
func (n *Node) Info() Info {
	p := n.personality
	names := make([]string, len(n.tools))
	for i, t := range n.tools {
		names[i] = t.Name
	}
	return Info{
		ID:          n.id,
		Name:        p.Name,
		Personality: &p,
		Provider:    n.provider.Name(),
		Tools:       names,
	}
}

// SystemPrompt returns the persona prompt, extended with the goal if set.
func (n *Node) SystemPrompt(goal string) string {
	if goal == "" {
		return n.personality.SystemPrompt
	}
	return n.personality.SystemPrompt + "\n\nCurrent goal: " + goal
}

// Run executes one turn. A reply with no text and no tool calls yields an
// empty update. Model errors are returned and abort the run.
func (n *Node) Run(ctx context.Context, st state.State) (state.Update, error) {
	history := provider.Normalize(st.Messages)
	msgs := make([]provider.Message, 0, len(history)+1)
	msgs = append(msgs, provider.Message{Role: provider.RoleSystem, Content: n.SystemPrompt(st.Goal)})
	msgs = append(msgs, history...)

	resp, err := n.provider.Chat(ctx, msgs, n.tools)
	if err != nil {
		return state.Update{}, fmt.Errorf("agent %s: %w", n.id, err)
	}
	if resp.Empty() {
		n.logger.Debug("empty reply, skipping")
		return state.Update{}, nil
	}

	reply := provider.ReplyMessage(resp)
	reply.ID = state.NewMessageID()
	reply.Name = string(n.id)
	n.logger.Debug("agent reply",
		zap.Int("tool_calls", len(reply.ToolCalls)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return state.Update{Messages: []provider.Message{reply}}, nil
}
