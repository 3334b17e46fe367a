package agent

import (
	"fmt"
	"sync"

	"github.com/GoCodeAlone/switchboard/state"
)

// Team groups the agent nodes available to one orchestration graph.
type Team struct {
	mu    sync.RWMutex
	nodes map[state.AgentID]*Node
}

// NewTeam creates a team from nodes. Duplicate ids are rejected.
func NewTeam(nodes ...*Node) (*Team, error) {
	t := &Team{nodes: make(map[state.AgentID]*Node, len(nodes))}
	for _, n := range nodes {
		if err := t.Add(n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a node.
func (t *Team) Add(n *Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.nodes[n.ID()]; exists {
		return fmt.Errorf("team: agent %s already added", n.ID())
	}
	t.nodes[n.ID()] = n
	return nil
}

// Get returns the node for id.
func (t *Team) Get(id state.AgentID) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Infos describes every member in roster order.
func (t *Team) Infos() []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Info, 0, len(t.nodes))
	for _, id := range state.Roster {
		if n, ok := t.nodes[id]; ok {
			out = append(out, n.Info())
		}
	}
	return out
}
