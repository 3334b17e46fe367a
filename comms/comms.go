// Package comms carries orchestration events from the graph to whoever is
// listening: the transcript recorder, the CLI printer and the HTTP server.
package comms

import (
	"context"
	"time"

	"github.com/GoCodeAlone/switchboard/provider"
)

// Topic identifies the kind of event.
type Topic string

const (
	TopicStep    Topic = "step"    // a graph node finished and the next one was chosen
	TopicMessage Topic = "message" // a message was appended to the conversation
	TopicRun     Topic = "run"     // a run started or finished

	// TopicAll subscribes to every topic.
	TopicAll Topic = "*"
)

// Event is one observation of a running graph.
type Event struct {
	ID        string            `json:"id"`
	Topic     Topic             `json:"topic"`
	RunID     string            `json:"run_id"`
	Step      int               `json:"step"`
	Node      string            `json:"node"`
	Next      string            `json:"next,omitempty"`
	Agent     string            `json:"agent,omitempty"`
	Message   *provider.Message `json:"message,omitempty"`
	Status    string            `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans events out to subscribers.
type Bus interface {
	// Publish delivers ev to the subscribers of its topic and of TopicAll.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for topic. Returns an unsubscribe function.
	Subscribe(topic Topic, handler Handler) (unsubscribe func())

	// History returns the most recent events of a run, oldest first.
	History(runID string, limit int) ([]*Event, error)
}
