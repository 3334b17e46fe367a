package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/plugin"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/state"
)

// Node executes the tool calls requested by an agent's latest reply and
// appends one tool-result message per call, in call order.
type Node struct {
	agent    state.AgentID
	registry *plugin.Registry
	logger   *zap.Logger
}

// NewNode creates the tool node for agent over registry.
func NewNode(agent state.AgentID, registry *plugin.Registry, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{agent: agent, registry: registry, logger: logger.With(zap.String("agent", agent.String()))}
}

// Agent returns the agent this node serves.
func (n *Node) Agent() state.AgentID { return n.agent }

// Defs returns the definitions of the tools this node can run.
func (n *Node) Defs() []provider.ToolDef { return n.registry.Defs() }

// Run dispatches the tool calls on the last message. Tool failures and
// unknown tool names become error results for the model to read; only
// context cancellation aborts the run.
func (n *Node) Run(ctx context.Context, st state.State) (state.Update, error) {
	if len(st.Messages) == 0 {
		return state.Update{}, nil
	}
	last := st.Messages[len(st.Messages)-1]
	if !last.HasToolCalls() {
		return state.Update{}, nil
	}

	results := make([]provider.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		if err := ctx.Err(); err != nil {
			return state.Update{}, err
		}
		results = append(results, n.invoke(ctx, call))
	}
	return state.Update{Messages: results}, nil
}

func (n *Node) invoke(ctx context.Context, call provider.ToolCall) provider.Message {
	msg := provider.Message{
		ID:         state.NewMessageID(),
		Role:       provider.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
	}

	out, err := n.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		n.logger.Info("tool call failed",
			zap.String("tool", call.Name), zap.String("call_id", call.ID), zap.Error(err))
		msg.Content = "Error: " + err.Error()
		msg.IsError = true
		return msg
	}
	n.logger.Debug("tool call", zap.String("tool", call.Name), zap.String("call_id", call.ID))

	text, err := resultText(out)
	if err != nil {
		msg.Content = "Error: " + err.Error()
		msg.IsError = true
		return msg
	}
	msg.Content = text
	return msg
}

func resultText(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
