// Package router decides which agents handle a conversation and in what
// order. It keeps a queue of planned agents and remembers the last user
// message it planned for so the graph cannot re-route it forever.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/state"
)

// PlanningPrompt is the system prompt for the planning call.
const PlanningPrompt = `You are the router for a multi-agent assistant.

Available agents:
- todo: creates, lists, updates and deletes the user's tasks
- web: researches current information on the web
- notes: organizes and cleans up notes and general writing
- finance: explains personal finance and markets topics

Read the user's message and decide which agents should handle it, in the order they should run.
Use as few agents as the request needs. Most requests need exactly one.

Reply with only a JSON array of agent names, for example ["todo"] or ["web","notes"].`

// Router plans agent order from the latest user message.
type Router struct {
	provider   provider.Provider
	strategies []Strategy
	logger     *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithStrategies replaces the plan parse order.
func WithStrategies(s []Strategy) Option {
	return func(r *Router) { r.strategies = s }
}

// WithLogger sets the router logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router that plans with p.
func New(p provider.Provider, opts ...Option) *Router {
	r := &Router{provider: p, strategies: Strategies, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route computes the next selection. A non-empty queue is consumed
// without calling the model. Otherwise the latest user message is planned
// for, unless it was already routed, in which case no agent is selected.
func (r *Router) Route(ctx context.Context, st state.State) (state.Update, error) {
	if queue := state.FilterAgents(st.PendingAgents); len(queue) > 0 {
		r.logger.Debug("dequeue", zap.String("selected", queue[0].String()), zap.Int("remaining", len(queue)-1))
		return state.Update{
			SelectedAgent: state.Ptr(queue[0]),
			PendingAgents: state.Ptr(append([]state.AgentID{}, queue[1:]...)),
		}, nil
	}

	idx, msg, ok := LastUserMessage(provider.Normalize(st.Messages))
	if !ok {
		return done(), nil
	}
	key := DedupKey(idx, msg)
	if key == st.LastRoutedMessageID {
		r.logger.Debug("message already routed", zap.String("key", key))
		return done(), nil
	}

	resp, err := r.provider.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: PlanningPrompt},
		{Role: provider.RoleUser, Content: msg.Text()},
	}, nil)
	if err != nil {
		return state.Update{}, fmt.Errorf("router: plan: %w", err)
	}

	plan, strategy := Plan(resp.Content, r.strategies)
	r.logger.Info("planned",
		zap.Strings("agents", agentNames(plan)),
		zap.String("strategy", strategy),
		zap.String("key", key))

	return state.Update{
		SelectedAgent:       state.Ptr(plan[0]),
		PendingAgents:       state.Ptr(append([]state.AgentID{}, plan[1:]...)),
		LastRoutedMessageID: state.Ptr(key),
	}, nil
}

func done() state.Update {
	return state.Update{
		SelectedAgent: state.Ptr(state.None),
		PendingAgents: state.Ptr([]state.AgentID{}),
	}
}

// LastUserMessage returns the most recent user message and its index.
func LastUserMessage(msgs []provider.Message) (int, provider.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.RoleUser {
			return i, msgs[i], true
		}
	}
	return -1, provider.Message{}, false
}

// DedupKey identifies a normalized user message for routing: its id when
// present, otherwise its position and trimmed text. Identical text at a different
// position yields a different key.
func DedupKey(idx int, msg provider.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	return fmt.Sprintf("%d:%s", idx, strings.TrimSpace(msg.Text()))
}

func agentNames(ids []state.AgentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
