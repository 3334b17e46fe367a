// Package tools implements the tools agents call (task management and web
// search) and the graph node that dispatches model tool calls to them.
package tools

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/switchboard/plugin"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/task"
)

// TaskTools returns the task management tools bound to store, in the
// order they are offered to the model.
func TaskTools(store task.Store) []plugin.Tool {
	return []plugin.Tool{
		&ListTasksTool{Store: store},
		&CreateTaskTool{Store: store},
		&UpdateTaskTool{Store: store},
		&DeleteTaskTool{Store: store},
	}
}

// ListTasksTool lists every stored task.
type ListTasksTool struct {
	Store task.Store
}

func (t *ListTasksTool) Name() string { return "list_tasks" }
func (t *ListTasksTool) Description() string {
	return "List all stored tasks with their status. Set include_internal_ids to see task ids."
}
func (t *ListTasksTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_internal_ids": map[string]any{"type": "boolean", "description": "Include task ids in the listing"},
			},
		},
	}
}
func (t *ListTasksTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	tasks, err := t.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return task.Summarize(tasks, boolArg(args, "include_internal_ids")), nil
}

// CreateTaskTool creates a new pending task.
type CreateTaskTool struct {
	Store task.Store
}

func (t *CreateTaskTool) Name() string        { return "create_task" }
func (t *CreateTaskTool) Description() string { return "Create a new task and assign it a unique id." }
func (t *CreateTaskTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string", "description": "Task title"},
				"description": map[string]any{"type": "string", "description": "Optional notes"},
				"due_date":    map[string]any{"type": "string", "description": "Optional due date, as the user phrased it"},
			},
			"required": []string{"title"},
		},
	}
}
func (t *CreateTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	title, err := requiredString(args, "title")
	if err != nil {
		return nil, err
	}
	in := task.Input{Title: title}
	if in.Description, err = optionalString(args, "description"); err != nil {
		return nil, err
	}
	if in.DueDate, err = optionalString(args, "due_date"); err != nil {
		return nil, err
	}
	created, err := t.Store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return "Created task:\n" + task.Format(created), nil
}

// UpdateTaskTool changes fields on an existing task.
type UpdateTaskTool struct {
	Store task.Store
}

func (t *UpdateTaskTool) Name() string        { return "update_task" }
func (t *UpdateTaskTool) Description() string { return "Update fields on an existing task by id." }
func (t *UpdateTaskTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "description": "Task id"},
				"title":       map[string]any{"type": "string", "description": "New title"},
				"status":      map[string]any{"type": "string", "enum": []string{"pending", "done"}, "description": "New status"},
				"description": map[string]any{"type": []string{"string", "null"}, "description": "New notes; null clears them"},
				"due_date":    map[string]any{"type": []string{"string", "null"}, "description": "New due date; null clears it"},
			},
			"required": []string{"id"},
		},
	}
}
func (t *UpdateTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}
	var patch task.Patch
	if patch.Title, err = optionalString(args, "title"); err != nil {
		return nil, err
	}
	status, err := optionalString(args, "status")
	if err != nil {
		return nil, err
	}
	if status != nil {
		s := task.Status(*status)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: status must be pending or done", task.ErrInvalid)
		}
		patch.Status = &s
	}
	if patch.Description, err = nullableString(args, "description"); err != nil {
		return nil, err
	}
	if patch.DueDate, err = nullableString(args, "due_date"); err != nil {
		return nil, err
	}
	updated, err := t.Store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return "Updated task:\n" + task.Format(updated), nil
}

// DeleteTaskTool permanently removes a task.
type DeleteTaskTool struct {
	Store task.Store
}

func (t *DeleteTaskTool) Name() string        { return "delete_task" }
func (t *DeleteTaskTool) Description() string { return "Delete a task permanently by id." }
func (t *DeleteTaskTool) Definition() provider.ToolDef {
	return provider.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string", "description": "Task id"},
			},
			"required": []string{"id"},
		},
	}
}
func (t *DeleteTaskTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}
	removed, err := t.Store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	return "Deleted task:\n" + task.Format(removed), nil
}
