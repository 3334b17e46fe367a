// Package graph runs the orchestration state machine. Control starts at the
// router, moves to the selected agent, through that agent's tool node while
// it keeps requesting tools, and back to the router until no agent is
// selected.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/state"
)

// DefaultMaxSteps bounds the number of node executions in one run.
const DefaultMaxSteps = 50

var (
	// ErrStepLimit is returned when a run does not reach the end state
	// within the configured number of steps.
	ErrStepLimit = errors.New("graph: step limit exceeded")
	// ErrToolLoop is returned when an agent keeps repeating tool calls.
	ErrToolLoop = errors.New("graph: tool loop detected")
	// ErrNoUserMessage is returned when a run is started without input.
	ErrNoUserMessage = errors.New("graph: at least one user message is required")
)

// Runner is a graph node: it reads the state and returns a partial update.
type Runner interface {
	Run(ctx context.Context, st state.State) (state.Update, error)
}

// Router picks the next agent.
type Router interface {
	Route(ctx context.Context, st state.State) (state.Update, error)
}

// Kind classifies graph positions.
type Kind int

const (
	KindRouter Kind = iota
	KindAgent
	KindTools
	KindEnd
)

// Position is a node of the state machine. Agent is set for agent and
// tool positions.
type Position struct {
	Kind  Kind
	Agent state.AgentID
}

var (
	routerPos = Position{Kind: KindRouter}
	endPos    = Position{Kind: KindEnd}
)

func (p Position) String() string {
	switch p.Kind {
	case KindRouter:
		return "router"
	case KindAgent:
		return "agent:" + string(p.Agent)
	case KindTools:
		return "tools:" + string(p.Agent)
	default:
		return "end"
	}
}

// Result is the outcome of one run.
type Result struct {
	RunID string      `json:"run_id"`
	Steps int         `json:"steps"`
	State state.State `json:"state"`
}

// Graph wires a router, agent nodes and tool nodes into a state machine.
// A Graph holds no per-run state and may run invocations concurrently.
type Graph struct {
	router   Router
	agents   map[state.AgentID]Runner
	tools    map[state.AgentID]Runner
	bus      comms.Bus
	logger   *zap.Logger
	maxSteps int
	loops    *LoopConfig
}

// Option configures a Graph.
type Option func(*Graph)

// WithAgent binds the agent node for id.
func WithAgent(id state.AgentID, n Runner) Option {
	return func(g *Graph) { g.agents[id] = n }
}

// WithTools binds the tool node that serves agent id.
func WithTools(id state.AgentID, n Runner) Option {
	return func(g *Graph) { g.tools[id] = n }
}

// WithBus publishes run events to bus.
func WithBus(bus comms.Bus) Option {
	return func(g *Graph) { g.bus = bus }
}

// WithLogger sets the graph logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMaxSteps overrides DefaultMaxSteps. Values <= 0 are ignored.
func WithMaxSteps(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxSteps = n
		}
	}
}

// WithLoopGuard aborts a run with ErrToolLoop when an agent's tool calls
// trip cfg.
func WithLoopGuard(cfg LoopConfig) Option {
	return func(g *Graph) { g.loops = &cfg }
}

// New builds a graph around router.
func New(router Router, opts ...Option) (*Graph, error) {
	if router == nil {
		return nil, errors.New("graph: router is required")
	}
	g := &Graph{
		router:   router,
		agents:   make(map[state.AgentID]Runner),
		tools:    make(map[state.AgentID]Runner),
		logger:   zap.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(g)
	}
	for id := range g.agents {
		if !id.Known() {
			return nil, fmt.Errorf("graph: unknown agent %q", id)
		}
	}
	for id := range g.tools {
		if _, ok := g.agents[id]; !ok {
			return nil, fmt.Errorf("graph: tool node for %s has no agent", id)
		}
	}
	return g, nil
}

// Agents lists the bound agents in roster order.
func (g *Graph) Agents() []state.AgentID {
	var out []state.AgentID
	for _, id := range state.Roster {
		if _, ok := g.agents[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// run carries the per-invocation bookkeeping.
type run struct {
	id    string
	step  int
	guard *LoopGuard
}

// Invoke runs the graph from the router until no agent is selected.
// On failure the returned Result holds the state reached so far.
func (g *Graph) Invoke(ctx context.Context, messages []provider.Message, goal string) (*Result, error) {
	if !hasUserMessage(messages) {
		return nil, ErrNoUserMessage
	}

	r := &run{id: ulid.Make().String()}
	if g.loops != nil {
		r.guard = NewLoopGuard(*g.loops)
	}
	logger := g.logger.With(zap.String("run_id", r.id))
	st := state.New(messages, goal)

	g.publish(ctx, logger, &comms.Event{Topic: comms.TopicRun, RunID: r.id, Node: "start", Status: "started"})
	for _, m := range st.Messages {
		g.publishMessage(ctx, logger, r, "input", state.None, m)
	}

	st, err := g.loop(ctx, logger, r, st)
	res := &Result{RunID: r.id, Steps: r.step, State: st}

	end := &comms.Event{Topic: comms.TopicRun, RunID: r.id, Step: r.step, Node: "end", Status: "completed"}
	if err != nil {
		end.Status = "failed"
		end.Error = err.Error()
		logger.Warn("run failed", zap.Int("steps", r.step), zap.Error(err))
	} else {
		logger.Info("run completed", zap.Int("steps", r.step), zap.Int("messages", len(st.Messages)))
	}
	g.publish(ctx, logger, end)
	return res, err
}

func (g *Graph) loop(ctx context.Context, logger *zap.Logger, r *run, st state.State) (state.State, error) {
	pos := routerPos
	for pos.Kind != KindEnd {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if r.step >= g.maxSteps {
			return st, fmt.Errorf("%w (%d steps, at %s)", ErrStepLimit, g.maxSteps, pos)
		}
		r.step++

		upd, err := g.exec(ctx, pos, st)
		if err != nil {
			return st, fmt.Errorf("%s: %w", pos, err)
		}
		st = state.Apply(st, upd)
		for _, m := range upd.Messages {
			g.publishMessage(ctx, logger, r, pos.String(), pos.Agent, m)
		}

		if pos.Kind == KindTools && r.guard != nil {
			if err := g.checkLoop(logger, r, st, upd); err != nil {
				return st, err
			}
		}

		next, err := g.next(pos, st, upd)
		if err != nil {
			return st, err
		}
		if pos.Kind == KindAgent && next.Kind == KindRouter {
			if results := unservedToolResults(pos.Agent, upd); len(results) > 0 {
				logger.Warn("agent requested tools it cannot run",
					zap.String("agent", string(pos.Agent)), zap.Int("calls", len(results)))
				st = state.Apply(st, state.Update{Messages: results})
				for _, m := range results {
					g.publishMessage(ctx, logger, r, pos.String(), pos.Agent, m)
				}
			}
			if r.guard != nil {
				r.guard.Reset()
			}
		}

		logger.Debug("step",
			zap.Int("step", r.step),
			zap.String("node", pos.String()),
			zap.String("next", next.String()),
			zap.Int("new_messages", len(upd.Messages)))
		g.publish(ctx, logger, &comms.Event{
			Topic: comms.TopicStep,
			RunID: r.id,
			Step:  r.step,
			Node:  pos.String(),
			Next:  next.String(),
			Agent: string(st.SelectedAgent),
		})
		pos = next
	}
	return st, nil
}

func (g *Graph) exec(ctx context.Context, pos Position, st state.State) (state.Update, error) {
	switch pos.Kind {
	case KindRouter:
		return g.router.Route(ctx, st)
	case KindAgent:
		return g.agents[pos.Agent].Run(ctx, st)
	case KindTools:
		return g.tools[pos.Agent].Run(ctx, st)
	}
	return state.Update{}, fmt.Errorf("graph: cannot execute %s", pos)
}

// next applies the transition rules to the state after pos ran.
func (g *Graph) next(pos Position, st state.State, upd state.Update) (Position, error) {
	switch pos.Kind {
	case KindRouter:
		if st.SelectedAgent == state.None {
			return endPos, nil
		}
		if _, ok := g.agents[st.SelectedAgent]; !ok {
			return endPos, fmt.Errorf("graph: no node for agent %s", st.SelectedAgent)
		}
		return Position{Kind: KindAgent, Agent: st.SelectedAgent}, nil
	case KindAgent:
		if n := len(upd.Messages); n > 0 && upd.Messages[n-1].HasToolCalls() {
			if _, ok := g.tools[pos.Agent]; ok {
				return Position{Kind: KindTools, Agent: pos.Agent}, nil
			}
		}
		return routerPos, nil
	case KindTools:
		return Position{Kind: KindAgent, Agent: pos.Agent}, nil
	}
	return endPos, nil
}

func (g *Graph) checkLoop(logger *zap.Logger, r *run, st state.State, upd state.Update) error {
	calls := pendingCalls(st.Messages[:len(st.Messages)-len(upd.Messages)])
	for _, m := range upd.Messages {
		if call, ok := calls[m.ToolCallID]; ok {
			r.guard.Record(call, m)
		}
	}
	status, msg := r.guard.Check()
	switch status {
	case LoopBreak:
		return fmt.Errorf("%w: %s", ErrToolLoop, msg)
	case LoopWarning:
		logger.Warn("possible tool loop", zap.String("detail", msg))
	}
	return nil
}

// unservedToolResults answers every tool call of an agent reply that has no
// tool node with an error result, so each call id still gets its result
// before the next agent runs.
func unservedToolResults(agent state.AgentID, upd state.Update) []provider.Message {
	n := len(upd.Messages)
	if n == 0 || !upd.Messages[n-1].HasToolCalls() {
		return nil
	}
	calls := upd.Messages[n-1].ToolCalls
	out := make([]provider.Message, 0, len(calls))
	for _, c := range calls {
		out = append(out, provider.Message{
			ID:         state.NewMessageID(),
			Role:       provider.RoleTool,
			Name:       c.Name,
			ToolCallID: c.ID,
			Content:    fmt.Sprintf("Error: tool %s is not available to the %s agent", c.Name, agent),
			IsError:    true,
		})
	}
	return out
}

// pendingCalls indexes the tool calls of the last message by call id.
func pendingCalls(msgs []provider.Message) map[string]provider.ToolCall {
	out := map[string]provider.ToolCall{}
	if len(msgs) == 0 {
		return out
	}
	for _, c := range msgs[len(msgs)-1].ToolCalls {
		out[c.ID] = c
	}
	return out
}

func (g *Graph) publishMessage(ctx context.Context, logger *zap.Logger, r *run, node string, agent state.AgentID, m provider.Message) {
	msg := m
	g.publish(ctx, logger, &comms.Event{
		Topic:   comms.TopicMessage,
		RunID:   r.id,
		Step:    r.step,
		Node:    node,
		Agent:   string(agent),
		Message: &msg,
	})
}

// publish stamps ev and hands it to the bus. Delivery failures are logged
// and never fail the run.
func (g *Graph) publish(ctx context.Context, logger *zap.Logger, ev *comms.Event) {
	if g.bus == nil {
		return
	}
	ev.ID = ulid.Make().String()
	ev.Timestamp = time.Now().UTC()
	if err := g.bus.Publish(ctx, ev); err != nil {
		logger.Warn("event delivery failed", zap.String("topic", string(ev.Topic)), zap.Error(err))
	}
}

func hasUserMessage(msgs []provider.Message) bool {
	for _, m := range msgs {
		if m.Role == provider.RoleUser {
			return true
		}
	}
	return false
}
