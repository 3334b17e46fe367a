// Package state defines the conversation state threaded through the
// orchestration graph and the partial updates nodes return.
package state

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/GoCodeAlone/switchboard/provider"
)

// AgentID names a specialized agent. The zero value means no agent.
type AgentID string

const (
	None    AgentID = ""
	Todo    AgentID = "todo"
	Web     AgentID = "web"
	Notes   AgentID = "notes"
	Finance AgentID = "finance"
)

// Roster lists every known agent in canonical order.
var Roster = []AgentID{Todo, Web, Notes, Finance}

// String returns the id, or "none" for the zero value.
func (a AgentID) String() string {
	if a == None {
		return "none"
	}
	return string(a)
}

// Known reports whether a is on the roster.
func (a AgentID) Known() bool {
	for _, r := range Roster {
		if a == r {
			return true
		}
	}
	return false
}

// ParseAgent maps a case-insensitive name to a roster id. "none" and
// unknown names yield None and false.
func ParseAgent(s string) (AgentID, bool) {
	id := AgentID(strings.ToLower(strings.TrimSpace(s)))
	if id.Known() {
		return id, true
	}
	return None, false
}

// FilterAgents keeps only roster ids, preserving order.
func FilterAgents(ids []AgentID) []AgentID {
	out := make([]AgentID, 0, len(ids))
	for _, id := range ids {
		if id.Known() {
			out = append(out, id)
		}
	}
	return out
}

// State is the unit every graph node reads. Messages only ever grow; the
// remaining fields are overwritten by whichever node last set them.
type State struct {
	Messages            []provider.Message `json:"messages"`
	Goal                string             `json:"goal,omitempty"`
	SelectedAgent       AgentID            `json:"selected_agent"`
	PendingAgents       []AgentID          `json:"pending_agents"`
	LastRoutedMessageID string             `json:"last_routed_message_id,omitempty"`
}

// New creates the initial state for one invocation.
func New(messages []provider.Message, goal string) State {
	return State{
		Messages:      append([]provider.Message(nil), messages...),
		Goal:          goal,
		PendingAgents: []AgentID{},
	}
}

// Update is a partial state change returned by a node. Messages are
// appended; nil pointer fields leave the current value alone.
type Update struct {
	Messages            []provider.Message
	Goal                *string
	SelectedAgent       *AgentID
	PendingAgents       *[]AgentID
	LastRoutedMessageID *string
}

// Empty reports whether applying u would change nothing.
func (u Update) Empty() bool {
	return len(u.Messages) == 0 && u.Goal == nil && u.SelectedAgent == nil &&
		u.PendingAgents == nil && u.LastRoutedMessageID == nil
}

// Apply merges u into s and returns the result. s is not modified.
func Apply(s State, u Update) State {
	out := s
	if len(u.Messages) > 0 {
		msgs := make([]provider.Message, 0, len(s.Messages)+len(u.Messages))
		msgs = append(msgs, s.Messages...)
		out.Messages = append(msgs, u.Messages...)
	}
	if u.Goal != nil {
		out.Goal = *u.Goal
	}
	if u.SelectedAgent != nil {
		out.SelectedAgent = *u.SelectedAgent
	}
	if u.PendingAgents != nil {
		out.PendingAgents = FilterAgents(*u.PendingAgents)
	}
	if u.LastRoutedMessageID != nil {
		out.LastRoutedMessageID = *u.LastRoutedMessageID
	}
	return out
}

// Ptr returns a pointer to v, for filling Update fields.
func Ptr[T any](v T) *T { return &v }

// NewMessageID returns a new sortable message identifier.
func NewMessageID() string { return ulid.Make().String() }
