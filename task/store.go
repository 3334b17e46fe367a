package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStore persists tasks as a JSON array in a single file. Every call
// reads the whole file and every mutation rewrites it through a temp file
// and rename, so readers never see a partial write.
type FileStore struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	newID  func() string
	rename func(oldpath, newpath string) error
	logger *zap.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *FileStore) { s.newID = fn }
}

// withRename overrides the rename used to publish writes.
func withRename(fn func(oldpath, newpath string) error) Option {
	return func(s *FileStore) { s.rename = fn }
}

// WithLogger sets the logger used for corruption and recovery events.
func WithLogger(l *zap.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore returns a store backed by the file at path. The file and
// its directory are created on first access.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:   path,
		now:    time.Now,
		newID:  uuid.NewString,
		rename: os.Rename,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// List returns all tasks in insertion order.
func (s *FileStore) List(ctx context.Context) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Create appends a new pending task.
func (s *FileStore) Create(ctx context.Context, in Input) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return Task{}, err
	}
	now := s.stamp()
	t := Task{
		ID:          s.newID(),
		Title:       title,
		Status:      StatusPending,
		Description: in.Description,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tasks = append(tasks, t)
	if err := s.write(tasks); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Update applies patch to the task with the given id.
func (s *FileStore) Update(ctx context.Context, id string, patch Patch) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Task{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return Task{}, fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Task{}, fmt.Errorf("%w: status %q must be pending or done", ErrInvalid, *patch.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return Task{}, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return Task{}, notFound(id)
	}

	t := tasks[idx]
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Description.Set {
		t.Description = patch.Description.Value
	}
	if patch.DueDate.Set {
		t.DueDate = patch.DueDate.Value
	}
	t.UpdatedAt = s.after(t.UpdatedAt)

	tasks[idx] = t
	if err := s.write(tasks); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Delete removes the task with the given id.
func (s *FileStore) Delete(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Task{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return Task{}, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return Task{}, notFound(id)
	}
	removed := tasks[idx]
	tasks = append(tasks[:idx], tasks[idx+1:]...)
	if err := s.write(tasks); err != nil {
		return Task{}, err
	}
	return removed, nil
}

// notFoundError carries the missing id and matches ErrNotFound.
type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return fmt.Sprintf("Task with id %s not found", e.id) }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(id string) error { return &notFoundError{id: id} }

func indexOf(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// after returns a timestamp strictly later than prev.
func (s *FileStore) after(prev time.Time) time.Time {
	now := s.stamp()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

// ensureStorage creates the directory and an empty collection if missing.
func (s *FileStore) ensureStorage() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(s.path, []byte("[]"), 0o644); err != nil {
			return fmt.Errorf("init task file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("stat task file: %w", err)
	}
	return nil
}

// read loads the collection. Unparseable content is moved aside and the
// store restarts from an empty collection.
func (s *FileStore) read() ([]Task, error) {
	if err := s.ensureStorage(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var tasks []Task
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err = json.Unmarshal(trimmed, &tasks); err == nil {
			if tasks == nil {
				tasks = []Task{}
			}
			return tasks, nil
		}
	} else {
		err = errors.New("content is not a JSON array")
	}
	return s.quarantine(err)
}

func (s *FileStore) quarantine(cause error) ([]Task, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixMilli())
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Warn("task file corrupt, could not move aside",
			zap.String("path", s.path), zap.NamedError("cause", cause), zap.Error(err))
	} else {
		s.logger.Warn("task file corrupt, quarantined",
			zap.String("path", s.path), zap.String("backup", backup), zap.NamedError("cause", cause))
	}
	if err := os.WriteFile(s.path, []byte("[]"), 0o644); err != nil {
		return nil, fmt.Errorf("reset task file: %w", err)
	}
	return []Task{}, nil
}

// write replaces the file atomically. If the rename fails because the
// destination directory vanished, the directory is recreated and the
// payload written directly.
func (s *FileStore) write(tasks []Task) error {
	if err := s.ensureStorage(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".tasks-%s.json.tmp", uuid.NewString()))
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write temp task file: %w", err)
	}
	if err := s.rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("task rename failed, writing directly", zap.String("path", s.path), zap.Error(err))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("recreate task dir: %w", err)
			}
			if err := os.WriteFile(s.path, payload, 0o644); err != nil {
				return fmt.Errorf("write task file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("replace task file: %w", err)
	}
	return nil
}
