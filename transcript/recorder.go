package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/provider"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("transcript: run not found")

// Entry is one recorded message.
type Entry struct {
	ID         string              `json:"id"`
	RunID      string              `json:"run_id"`
	Seq        int                 `json:"seq"`
	Step       int                 `json:"step"`
	Node       string              `json:"node"`
	Agent      string              `json:"agent,omitempty"`
	Role       provider.Role       `json:"role"`
	Name       string              `json:"name,omitempty"`
	Content    string              `json:"content"`
	ToolCalls  []provider.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	IsError    bool                `json:"is_error,omitempty"`
	Redacted   bool                `json:"redacted,omitempty"`
	CreatedAt  string              `json:"created_at"`
}

// Run summarizes one recorded invocation.
type Run struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Steps      int    `json:"steps"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// Recorder writes graph events to the transcript database.
type Recorder struct {
	db     *sql.DB
	guard  *SecretGuard
	logger *zap.Logger
}

// NewRecorder creates a recorder over db. guard may be nil.
func NewRecorder(db *sql.DB, guard *SecretGuard, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, guard: guard, logger: logger}
}

// Handle is a comms.Handler that records run and message events and
// ignores the rest.
func (r *Recorder) Handle(ctx context.Context, ev *comms.Event) error {
	switch ev.Topic {
	case comms.TopicRun:
		return r.recordRun(ctx, ev)
	case comms.TopicMessage:
		if ev.Message == nil {
			return nil
		}
		return r.Record(ctx, ev.RunID, ev.Step, ev.Node, ev.Agent, *ev.Message, ev.Timestamp)
	}
	return nil
}

func (r *Recorder) recordRun(ctx context.Context, ev *comms.Event) error {
	at := stamp(ev.Timestamp)
	if ev.Status == "started" {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
			ev.RunID, ev.Status, at)
		if err != nil {
			return fmt.Errorf("transcript: record run %s: %w", ev.RunID, err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, steps = ?, error = ?, finished_at = ? WHERE id = ?`,
		ev.Status, ev.Step, r.redact(ev.Error), at, ev.RunID)
	if err != nil {
		return fmt.Errorf("transcript: finish run %s: %w", ev.RunID, err)
	}
	return nil
}

// Record saves one message of a run.
func (r *Recorder) Record(ctx context.Context, runID string, step int, node, agent string, msg provider.Message, at time.Time) error {
	content := r.redact(msg.Content)
	redacted := 0
	if content != msg.Content {
		redacted = 1
	}

	toolCallsJSON := []byte("[]")
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("transcript: encode tool calls: %w", err)
		}
		toolCallsJSON = []byte(r.redact(string(data)))
	}

	isError := 0
	if msg.IsError {
		isError = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, run_id, seq, step, node, agent, role, name, content, tool_calls, tool_call_id, is_error, redacted, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transcripts WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), runID, runID, step, node, agent,
		string(msg.Role), msg.Name, content, string(toolCallsJSON),
		msg.ToolCallID, isError, redacted, stamp(at),
	)
	if err != nil {
		return fmt.Errorf("transcript: record message: %w", err)
	}
	if redacted == 1 {
		r.logger.Info("redacted secret from transcript", zap.String("run_id", runID), zap.String("node", node))
	}
	return nil
}

// ByRun returns every message of runID in order.
func (r *Recorder) ByRun(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, seq, step, node, agent, role, name, content, tool_calls, tool_call_id, is_error, redacted, created_at
		 FROM transcripts WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("transcript: query run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var role, toolCallsJSON string
		var isError, redacted int
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &e.Step, &e.Node, &e.Agent, &role, &e.Name,
			&e.Content, &toolCallsJSON, &e.ToolCallID, &isError, &redacted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan: %w", err)
		}
		e.Role = provider.Role(role)
		_ = json.Unmarshal([]byte(toolCallsJSON), &e.ToolCalls)
		e.IsError = isError == 1
		e.Redacted = redacted == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRun returns the summary of one run.
func (r *Recorder) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, steps, error, started_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Status, &run.Steps, &run.Error, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("transcript: query run %s: %w", runID, err)
	}
	return run, nil
}

// Runs lists the most recent runs, newest first. limit <= 0 means 20.
func (r *Recorder) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, steps, error, started_at, finished_at FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Status, &run.Steps, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Recorder) redact(s string) string {
	if r.guard == nil {
		return s
	}
	return r.guard.Redact(s)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
