// Package task defines the task record model and its crash-safe JSON file store.
package task

import (
	"context"
	"errors"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

var (
	// ErrNotFound is returned when an update or delete targets an unknown id.
	ErrNotFound = errors.New("task not found")
	// ErrInvalid is returned for inputs that fail validation.
	ErrInvalid = errors.New("invalid task input")
)

// Task is a single to-do record. The id never changes after creation and
// UpdatedAt strictly increases on every mutation.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	Description *string   `json:"description"`
	DueDate     *string   `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input holds the fields for a new task.
type Input struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// Nullable is a tri-state optional field for patches: unset leaves the
// stored value alone, set with nil clears it, set with a value replaces it.
type Nullable struct {
	Set   bool
	Value *string
}

// Set returns a Nullable that replaces the field with v.
func Set(v string) Nullable { return Nullable{Set: true, Value: &v} }

// Clear returns a Nullable that clears the field.
func Clear() Nullable { return Nullable{Set: true} }

// Patch lists the fields to change on an existing task. Nil pointers and
// unset Nullables leave the stored value unchanged.
type Patch struct {
	Title       *string
	Status      *Status
	Description Nullable
	DueDate     Nullable
}

// Store persists task records. Implementations re-read their backing data
// on every call.
type Store interface {
	// List returns every task in insertion order.
	List(ctx context.Context) ([]Task, error)

	// Create persists a new pending task and returns it.
	Create(ctx context.Context, in Input) (Task, error)

	// Update applies patch to the task with the given id.
	Update(ctx context.Context, id string, patch Patch) (Task, error)

	// Delete removes the task with the given id and returns it.
	Delete(ctx context.Context, id string) (Task, error)
}
