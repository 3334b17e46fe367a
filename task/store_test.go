package task

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "tasks.json")
	return NewFileStore(path, opts...)
}

// fixedClock returns the same instant on every call.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestFileStore_ListCreatesFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NotNil(t, tasks)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileStore_CreateAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	desc, due := "sections 1-3", "Friday"
	created, err := store.Create(ctx, Input{Title: "  Draft the Q3 report ", Description: &desc, DueDate: &due})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Draft the Q3 report", created.Title)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Equal(t, time.UTC, created.CreatedAt.Location())

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Draft the Q3 report", got.Title)
	assert.Equal(t, StatusPending, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)
}

func TestFileStore_InsertionOrderAndUniqueIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		_, err := store.Create(ctx, Input{Title: title})
		require.NoError(t, err)
	}
	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	seen := map[string]bool{}
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, tasks[i].Title)
		assert.False(t, seen[tasks[i].ID], "duplicate id %s", tasks[i].ID)
		seen[tasks[i].ID] = true
	}
}

func TestFileStore_CreateRequiresTitle(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(context.Background(), Input{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFileStore_FileFormat(t *testing.T) {
	store := newTestStore(t, WithIDGenerator(func() string { return "task-1" }),
		WithClock(fixedClock(time.Date(2024, 7, 1, 9, 30, 0, 123456789, time.UTC))))
	_, err := store.Create(context.Background(), Input{Title: "Buy milk"})
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"id\": \"task-1\""), string(data))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	rec := raw[0]
	assert.Equal(t, "Buy milk", rec["title"])
	assert.Equal(t, "pending", rec["status"])
	assert.Contains(t, rec, "description")
	assert.Nil(t, rec["description"])
	assert.Contains(t, rec, "dueDate")
	assert.Nil(t, rec["dueDate"])
	assert.Equal(t, "2024-07-01T09:30:00.123Z", rec["createdAt"])
	assert.Equal(t, "2024-07-01T09:30:00.123Z", rec["updatedAt"])
}

func TestFileStore_UpdateStatusOnly(t *testing.T) {
	at := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(fixedClock(at)))
	ctx := context.Background()

	desc, due := "notes", "Monday"
	created, err := store.Create(ctx, Input{Title: "Pay rent", Description: &desc, DueDate: &due})
	require.NoError(t, err)

	done := StatusDone
	updated, err := store.Update(ctx, created.ID, Patch{Status: &done})
	require.NoError(t, err)

	assert.Equal(t, StatusDone, updated.Status)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.DueDate, updated.DueDate)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	// clock did not move, updatedAt still strictly increases
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	again, err := store.Update(ctx, created.ID, Patch{})
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, again, tasks[0])
}

func TestFileStore_UpdateClearsAndSets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	desc := "old"
	created, err := store.Create(ctx, Input{Title: "Call mom", Description: &desc})
	require.NoError(t, err)

	title := "Call mom and dad"
	updated, err := store.Update(ctx, created.ID, Patch{
		Title:       &title,
		Description: Clear(),
		DueDate:     Set("Sunday"),
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Nil(t, updated.Description)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, "Sunday", *updated.DueDate)
}

func TestFileStore_UpdateValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, Input{Title: "x"})
	require.NoError(t, err)

	empty := " "
	_, err = store.Update(ctx, created.ID, Patch{Title: &empty})
	assert.ErrorIs(t, err, ErrInvalid)

	bogus := Status("archived")
	_, err = store.Update(ctx, created.ID, Patch{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = store.Update(ctx, "", Patch{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFileStore_NotFoundLeavesCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, Input{Title: "keep"})
	require.NoError(t, err)

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	done := StatusDone
	_, err = store.Update(ctx, "missing", Patch{Status: &done})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Task with id missing not found", err.Error())

	_, err = store.Delete(ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a, err := store.Create(ctx, Input{Title: "a"})
	require.NoError(t, err)
	b, err := store.Create(ctx, Input{Title: "b"})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, removed)

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, b.ID, tasks[0].ID)
}

func TestFileStore_CorruptionRecovery(t *testing.T) {
	for name, content := range map[string]string{
		"malformed": "{not json",
		"object":    `{"id":"x"}`,
		"null":      "null",
		"number":    "42",
		"bad field": `[{"id":"x","title":7}]`,
	} {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
			require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))
			ctx := context.Background()

			tasks, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			matches, err := filepath.Glob(store.Path() + ".corrupt-*")
			require.NoError(t, err)
			require.Len(t, matches, 1)
			quarantined, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			assert.Equal(t, content, string(quarantined))

			_, err = store.Create(ctx, Input{Title: "fresh start"})
			require.NoError(t, err)
			tasks, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, "fresh start", tasks[0].Title)
		})
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, Input{Title: "t"})
		require.NoError(t, err)
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), ".tasks-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStore_RecreatesVanishedDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, Input{Title: "before"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Dir(store.Path())))

	_, err = store.Create(ctx, Input{Title: "after"})
	require.NoError(t, err)
	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "after", tasks[0].Title)
}

func TestFileStore_RenameIntoVanishedDirectoryWritesDirectly(t *testing.T) {
	var store *FileStore
	store = newTestStore(t, withRename(func(oldpath, newpath string) error {
		// The directory disappears between the temp write and the rename.
		require.NoError(t, os.RemoveAll(filepath.Dir(store.Path())))
		return os.Rename(oldpath, newpath)
	}))
	ctx := context.Background()

	created, err := store.Create(ctx, Input{Title: "survives"})
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var onDisk []Task
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, created.ID, onDisk[0].ID)
	assert.Equal(t, "survives", onDisk[0].Title)
}

func TestFileStore_RenameFailurePropagates(t *testing.T) {
	renameErr := errors.New("device busy")
	fail := false
	store := newTestStore(t, withRename(func(oldpath, newpath string) error {
		if fail {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: renameErr}
		}
		return os.Rename(oldpath, newpath)
	}))
	ctx := context.Background()

	_, err := store.Create(ctx, Input{Title: "kept"})
	require.NoError(t, err)

	fail = true
	_, err = store.Create(ctx, Input{Title: "lost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, renameErr)
	assert.Contains(t, err.Error(), "replace task file")

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), ".tasks-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	fail = false
	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "kept", tasks[0].Title)
}

func TestFileStore_ConcurrentCreates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, Input{Title: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 10)
}

func TestFileStore_SeesExternalEdits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	external := `[{"id":"ext","title":"from editor","status":"done","description":null,"dueDate":null,
		"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(store.Path(), []byte(external), 0o644))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "from editor", tasks[0].Title)
	assert.Equal(t, StatusDone, tasks[0].Status)
}

func TestFileStore_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
