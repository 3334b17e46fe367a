package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/switchboard/plugin"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/search"
	"github.com/GoCodeAlone/switchboard/state"
	"github.com/GoCodeAlone/switchboard/task"
)

func newStore(t *testing.T) *task.FileStore {
	t.Helper()
	return task.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
}

// decodeArgs mimics how arguments arrive from a provider.
func decodeArgs(t *testing.T, raw string) map[string]any {
	t.Helper()
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &args))
	return args
}

func TestTaskTools_Order(t *testing.T) {
	r := plugin.NewRegistry(TaskTools(newStore(t))...)
	assert.Equal(t, []string{"list_tasks", "create_task", "update_task", "delete_task"}, r.Names())
	for _, def := range r.Defs() {
		assert.Equal(t, "object", def.Parameters["type"], def.Name)
	}
}

func TestCreateTaskTool(t *testing.T) {
	store := newStore(t)
	tool := &CreateTaskTool{Store: store}

	out, err := tool.Execute(context.Background(), decodeArgs(t, `{"title":"Draft the Q3 report","due_date":"Friday"}`))
	require.NoError(t, err)

	tasks, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	text := out.(string)
	assert.True(t, strings.HasPrefix(text, "Created task:\n- [ ] Draft the Q3 report"), text)
	assert.Contains(t, text, tasks[0].ID)
	assert.Contains(t, text, "due: Friday")

	_, err = tool.Execute(context.Background(), decodeArgs(t, `{"title":""}`))
	assert.ErrorIs(t, err, task.ErrInvalid)
	_, err = tool.Execute(context.Background(), decodeArgs(t, `{"title":"x","description":5}`))
	assert.ErrorIs(t, err, task.ErrInvalid)
}

func TestListTasksTool(t *testing.T) {
	store := newStore(t)
	tool := &ListTasksTool{Store: store}
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, task.EmptySummary, out)

	created, err := store.Create(ctx, task.Input{Title: "Buy milk"})
	require.NoError(t, err)

	out, err = tool.Execute(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "- [ ] Buy milk", out)

	out, err = tool.Execute(ctx, decodeArgs(t, `{"include_internal_ids":true}`))
	require.NoError(t, err)
	assert.Contains(t, out, created.ID)
}

func TestUpdateTaskTool(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	desc, due := "old notes", "Monday"
	created, err := store.Create(ctx, task.Input{Title: "Pay rent", Description: &desc, DueDate: &due})
	require.NoError(t, err)

	tool := &UpdateTaskTool{Store: store}

	out, err := tool.Execute(ctx, decodeArgs(t, `{"id":"`+created.ID+`","status":"done"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.(string), "Updated task:\n- [x] Pay rent"))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, tasks[0].Description)
	assert.Equal(t, "old notes", *tasks[0].Description)
	require.NotNil(t, tasks[0].DueDate)

	_, err = tool.Execute(ctx, decodeArgs(t, `{"id":"`+created.ID+`","description":null,"due_date":"Tuesday"}`))
	require.NoError(t, err)
	tasks, err = store.List(ctx)
	require.NoError(t, err)
	assert.Nil(t, tasks[0].Description)
	assert.Equal(t, "Tuesday", *tasks[0].DueDate)
	assert.Equal(t, task.StatusDone, tasks[0].Status)

	_, err = tool.Execute(ctx, decodeArgs(t, `{"id":"`+created.ID+`","status":"archived"}`))
	assert.ErrorIs(t, err, task.ErrInvalid)

	_, err = tool.Execute(ctx, decodeArgs(t, `{"id":"nope","status":"done"}`))
	assert.ErrorIs(t, err, task.ErrNotFound)

	_, err = tool.Execute(ctx, map[string]any{})
	assert.ErrorIs(t, err, task.ErrInvalid)
}

func TestDeleteTaskTool(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, task.Input{Title: "Old errand"})
	require.NoError(t, err)

	tool := &DeleteTaskTool{Store: store}
	out, err := tool.Execute(ctx, decodeArgs(t, `{"id":"`+created.ID+`"}`))
	require.NoError(t, err)
	assert.Equal(t, "Deleted task:\n"+task.Format(created), out)

	_, err = tool.Execute(ctx, decodeArgs(t, `{"id":"`+created.ID+`"}`))
	assert.ErrorIs(t, err, task.ErrNotFound)
}

type fakeSearch struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearch) Name() string { return "fake" }
func (f *fakeSearch) Search(_ context.Context, q string) ([]search.Result, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func TestSearchTools_Selection(t *testing.T) {
	live := SearchTools(&fakeSearch{}, "TAVILY_API_KEY")
	require.Len(t, live, 1)
	assert.Equal(t, "web_search", live[0].Name())

	placeholder := SearchTools(nil, "TAVILY_API_KEY")
	require.Len(t, placeholder, 1)
	assert.Equal(t, "web_search_placeholder", placeholder[0].Name())

	out, err := placeholder[0].Execute(context.Background(), map[string]any{"query": "weather in Oslo"})
	require.NoError(t, err)
	assert.Equal(t, search.Unavailable("TAVILY_API_KEY", "weather in Oslo"), out)
}

func TestWebSearchTool(t *testing.T) {
	backend := &fakeSearch{results: []search.Result{{Title: "A", URL: "https://a"}}}
	tool := &WebSearchTool{Backend: backend}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "go generics"})
	require.NoError(t, err)
	assert.Equal(t, backend.results, out)
	assert.Equal(t, []string{"go generics"}, backend.queries)

	_, err = tool.Execute(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, task.ErrInvalid)
	assert.ErrorContains(t, err, "query is required")
	assert.Len(t, backend.queries, 1)

	backend.err = errors.New("rate limited")
	_, err = tool.Execute(context.Background(), map[string]any{"query": "x"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestNode_Dispatch(t *testing.T) {
	store := newStore(t)
	backend := &fakeSearch{results: []search.Result{{Title: "A", URL: "https://a", Content: "alpha"}}}
	reg := plugin.NewRegistry(append(TaskTools(store), SearchTools(backend, "")...)...)
	node := NewNode(state.Todo, reg, nil)
	assert.Equal(t, state.Todo, node.Agent())
	assert.Len(t, node.Defs(), 5)

	st := state.New([]provider.Message{
		{Role: provider.RoleUser, Content: "do things"},
		{Role: provider.RoleAssistant, ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "create_task", Arguments: map[string]any{"title": "Buy milk"}},
			{ID: "c2", Name: "delete_task", Arguments: map[string]any{"id": "missing"}},
			{ID: "c3", Name: "launch_rockets"},
			{ID: "c4", Name: "web_search", Arguments: map[string]any{"query": "milk prices"}},
		}},
	}, "")

	upd, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, upd.Messages, 4)

	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		m := upd.Messages[i]
		assert.Equal(t, provider.RoleTool, m.Role)
		assert.Equal(t, id, m.ToolCallID)
		assert.NotEmpty(t, m.ID)
	}
	assert.False(t, upd.Messages[0].IsError)
	assert.True(t, strings.HasPrefix(upd.Messages[0].Content, "Created task:"))
	assert.Equal(t, "create_task", upd.Messages[0].Name)

	assert.True(t, upd.Messages[1].IsError)
	assert.Equal(t, "Error: Task with id missing not found", upd.Messages[1].Content)

	assert.True(t, upd.Messages[2].IsError)
	assert.Contains(t, upd.Messages[2].Content, "unknown tool")

	assert.False(t, upd.Messages[3].IsError)
	assert.JSONEq(t, `[{"title":"A","url":"https://a","content":"alpha"}]`, upd.Messages[3].Content)

	assert.Nil(t, upd.SelectedAgent)
}

func TestNode_NoToolCalls(t *testing.T) {
	node := NewNode(state.Web, plugin.NewRegistry(), nil)

	upd, err := node.Run(context.Background(), state.New(nil, ""))
	require.NoError(t, err)
	assert.True(t, upd.Empty())

	upd, err = node.Run(context.Background(), state.New([]provider.Message{{Role: provider.RoleAssistant, Content: "done"}}, ""))
	require.NoError(t, err)
	assert.True(t, upd.Empty())
}

func TestNode_CanceledContext(t *testing.T) {
	node := NewNode(state.Todo, plugin.NewRegistry(TaskTools(newStore(t))...), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := node.Run(ctx, state.New([]provider.Message{
		{Role: provider.RoleAssistant, ToolCalls: []provider.ToolCall{{ID: "c1", Name: "list_tasks"}}},
	}, ""))
	assert.ErrorIs(t, err, context.Canceled)
}
