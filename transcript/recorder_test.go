package transcript

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/provider"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_IdempotentMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestRecorder_HandleRun(t *testing.T) {
	rec := NewRecorder(openTestDB(t), nil, nil)
	bus := comms.NewInMemoryBus(0)
	bus.Subscribe(comms.TopicAll, rec.Handle)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []*comms.Event{
		{Topic: comms.TopicRun, RunID: "run-1", Node: "start", Status: "started", Timestamp: now},
		{Topic: comms.TopicMessage, RunID: "run-1", Node: "input",
			Message: &provider.Message{Role: provider.RoleUser, Content: "add milk"}, Timestamp: now},
		{Topic: comms.TopicStep, RunID: "run-1", Step: 1, Node: "router", Next: "agent:todo", Timestamp: now},
		{Topic: comms.TopicMessage, RunID: "run-1", Step: 2, Node: "agent:todo", Agent: "todo",
			Message: &provider.Message{Role: provider.RoleAssistant, Name: "todo", ToolCalls: []provider.ToolCall{
				{ID: "c1", Name: "create_task", Arguments: map[string]any{"title": "milk"}},
			}}, Timestamp: now},
		{Topic: comms.TopicMessage, RunID: "run-1", Step: 3, Node: "tools:todo", Agent: "todo",
			Message: &provider.Message{Role: provider.RoleTool, Name: "create_task", ToolCallID: "c1", Content: "Created task", IsError: false}, Timestamp: now},
		{Topic: comms.TopicRun, RunID: "run-1", Step: 5, Node: "end", Status: "completed", Timestamp: now.Add(time.Second)},
	}
	for _, ev := range events {
		require.NoError(t, bus.Publish(ctx, ev))
	}

	entries, err := rec.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Seq)
	}
	assert.Equal(t, provider.RoleUser, entries[0].Role)
	assert.Equal(t, "add milk", entries[0].Content)
	require.Len(t, entries[1].ToolCalls, 1)
	assert.Equal(t, "create_task", entries[1].ToolCalls[0].Name)
	assert.Equal(t, "milk", entries[1].ToolCalls[0].Arguments["title"])
	assert.Equal(t, "c1", entries[2].ToolCallID)
	assert.Equal(t, "tools:todo", entries[2].Node)

	run, err := rec.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 5, run.Steps)
	assert.NotEmpty(t, run.FinishedAt)
}

func TestRecorder_Redacts(t *testing.T) {
	guard := NewSecretGuard()
	guard.LoadEnv(func(name string) string {
		if name == "TAVILY_API_KEY" {
			return "tvly-secret"
		}
		return ""
	}, "TAVILY_API_KEY", "ANTHROPIC_API_KEY")
	rec := NewRecorder(openTestDB(t), guard, nil)
	ctx := context.Background()

	err := rec.Record(ctx, "r", 1, "agent:web", "web",
		provider.Message{Role: provider.RoleAssistant, Content: "the key is tvly-secret"}, time.Now())
	require.NoError(t, err)

	entries, err := rec.ByRun(ctx, "r")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "the key is [REDACTED:TAVILY_API_KEY]", entries[0].Content)
	assert.True(t, entries[0].Redacted)
}

func TestRecorder_Runs(t *testing.T) {
	rec := NewRecorder(openTestDB(t), nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, rec.Handle(ctx, &comms.Event{
			Topic: comms.TopicRun, RunID: id, Status: "started", Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, rec.Handle(ctx, &comms.Event{
		Topic: comms.TopicRun, RunID: "b", Status: "failed", Error: "boom", Step: 2, Timestamp: base.Add(time.Hour),
	}))

	runs, err := rec.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "failed", runs[1].Status)
	assert.Equal(t, "boom", runs[1].Error)
}

func TestRecorder_GetRunNotFound(t *testing.T) {
	rec := NewRecorder(openTestDB(t), nil, nil)
	_, err := rec.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSecretGuard(t *testing.T) {
	g := NewSecretGuard()
	g.AddKnownSecret("EMPTY", "")
	g.AddKnownSecret("KEY", "abc123")
	assert.Equal(t, "x [REDACTED:KEY] y", g.Redact("x abc123 y"))
	assert.Equal(t, "nothing here", g.Redact("nothing here"))
}
