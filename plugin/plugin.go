// Package plugin defines the tool interface agents invoke through model
// tool calls, and an ordered registry for binding tool sets to agents.
package plugin

import (
	"context"

	"github.com/GoCodeAlone/switchboard/provider"
)

// Tool is one capability a model can call by name.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Definition returns the tool definition for the AI provider.
	Definition() provider.ToolDef

	// Execute runs the tool with the given arguments. Non-string results
	// are serialized to JSON by the caller.
	Execute(ctx context.Context, args map[string]any) (any, error)
}
