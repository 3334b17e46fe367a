package tools

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/switchboard/task"
)

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s is required", task.ErrInvalid, key)
	}
	return strings.TrimSpace(v), nil
}

// optionalString returns nil when key is absent or null.
func optionalString(args map[string]any, key string) (*string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", task.ErrInvalid, key)
	}
	return &s, nil
}

// nullableString distinguishes an absent key (leave unchanged) from an
// explicit null (clear).
func nullableString(args map[string]any, key string) (task.Nullable, error) {
	v, ok := args[key]
	if !ok {
		return task.Nullable{}, nil
	}
	if v == nil {
		return task.Clear(), nil
	}
	s, ok := v.(string)
	if !ok {
		return task.Nullable{}, fmt.Errorf("%w: %s must be a string or null", task.ErrInvalid, key)
	}
	return task.Set(s), nil
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}
