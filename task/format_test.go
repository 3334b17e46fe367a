package task

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	due, notes := "Friday", "first draft"
	tests := []struct {
		name string
		task Task
		want string
	}{
		{
			name: "pending minimal",
			task: Task{ID: "a1", Title: "Buy milk", Status: StatusPending},
			want: "- [ ] Buy milk\n  - id: a1",
		},
		{
			name: "done with due and notes",
			task: Task{ID: "b2", Title: "Draft the Q3 report", Status: StatusDone, DueDate: &due, Description: &notes},
			want: "- [x] Draft the Q3 report\n  - id: b2\n  - due: Friday\n  - notes: first draft",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.task))
		})
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, EmptySummary, Summarize(nil, false))

	due := "Monday"
	tasks := []Task{
		{ID: "1", Title: "one", Status: StatusPending, DueDate: &due},
		{ID: "2", Title: "two", Status: StatusDone},
	}
	assert.Equal(t, "- [ ] one\n  - due: Monday\n- [x] two", Summarize(tasks, false))
	assert.Equal(t, "- [ ] one\n  - id: 1\n  - due: Monday\n- [x] two\n  - id: 2", Summarize(tasks, true))
}

func TestWatch_NotifiesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store := NewFileStore(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func() { calls.Add(1) })
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	_, err := store.Create(context.Background(), Input{Title: "watched"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
