// Package api defines the REST API handlers and the interfaces they use.
package api

import (
	"context"

	"github.com/GoCodeAlone/switchboard/agent"
	"github.com/GoCodeAlone/switchboard/graph"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/transcript"
)

// Invoker runs one orchestration. Implemented by *graph.Graph.
type Invoker interface {
	Invoke(ctx context.Context, messages []provider.Message, goal string) (*graph.Result, error)
}

// RunReader reads recorded runs. Implemented by *transcript.Recorder.
type RunReader interface {
	Runs(ctx context.Context, limit int) ([]transcript.Run, error)
	GetRun(ctx context.Context, runID string) (transcript.Run, error)
	ByRun(ctx context.Context, runID string) ([]transcript.Entry, error)
}

// AgentLister describes the configured agents. Implemented by *agent.Team.
type AgentLister interface {
	Infos() []agent.Info
}
