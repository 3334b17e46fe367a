package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/agent"
	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/graph"
	"github.com/GoCodeAlone/switchboard/provider"
	"github.com/GoCodeAlone/switchboard/task"
	"github.com/GoCodeAlone/switchboard/transcript"
)

// Handlers bundles all REST API handler dependencies. Runs and Bus may be
// nil; their routes then answer 503.
type Handlers struct {
	Graph   Invoker
	Agents  AgentLister
	Tasks   task.Store
	Runs    RunReader
	Bus     comms.Bus
	Logger  *zap.Logger
	Version string
	Search  string
	StartAt time.Time
}

// InvokeRequest is the body of POST /api/invoke.
type InvokeRequest struct {
	Messages []provider.Message `json:"messages"`
	Message  string             `json:"message,omitempty"` // shorthand for one user message
	Goal     string             `json:"goal,omitempty"`
}

// InvokeResponse is the reply of POST /api/invoke.
type InvokeResponse struct {
	*graph.Result
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// RunResponse is the reply of GET /api/runs/{id}.
type RunResponse struct {
	Run     transcript.Run     `json:"run"`
	Entries []transcript.Entry `json:"entries"`
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/invoke", h.invoke)

	mux.HandleFunc("GET /api/agents", h.listAgents)

	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)

	mux.HandleFunc("GET /api/runs", h.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.getRun)

	mux.HandleFunc("GET /api/events", h.listEvents)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// --- Invocation ---

func (h *Handlers) invoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	msgs := req.Messages
	if req.Message != "" {
		msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: req.Message})
	}

	res, err := h.Graph.Invoke(r.Context(), msgs, req.Goal)
	switch {
	case errors.Is(err, graph.ErrNoUserMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger().Warn("invoke failed", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, graph.ErrStepLimit) || errors.Is(err, graph.ErrToolLoop) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, InvokeResponse{Result: res, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, InvokeResponse{Result: res, Reply: lastReply(res.State.Messages)})
}

// lastReply returns the text of the final assistant message.
func lastReply(msgs []provider.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.RoleAssistant && msgs[i].Text() != "" {
			return msgs[i].Text()
		}
	}
	return ""
}

// --- Agent handlers ---

func (h *Handlers) listAgents(w http.ResponseWriter, _ *http.Request) {
	agents := h.Agents.Infos()
	if agents == nil {
		agents = []agent.Info{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == s {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var in task.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Tasks.Create(r.Context(), in)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// updateTask applies a partial update. An absent field is left alone and
// an explicit null clears description or dueDate.
func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	patch, err := decodePatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Tasks.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func decodePatch(body map[string]json.RawMessage) (task.Patch, error) {
	var p task.Patch
	if raw, ok := body["title"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return p, errors.New("title must be a string")
		}
		p.Title = &s
	}
	if raw, ok := body["status"]; ok {
		var s task.Status
		if err := json.Unmarshal(raw, &s); err != nil {
			return p, errors.New("status must be a string")
		}
		p.Status = &s
	}
	var err error
	if p.Description, err = nullable(body, "description"); err != nil {
		return p, err
	}
	if p.DueDate, err = nullable(body, "dueDate"); err != nil {
		return p, err
	}
	return p, nil
}

func nullable(body map[string]json.RawMessage, key string) (task.Nullable, error) {
	raw, ok := body[key]
	if !ok {
		return task.Nullable{}, nil
	}
	if string(raw) == "null" {
		return task.Clear(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return task.Nullable{}, errors.New(key + " must be a string or null")
	}
	return task.Set(s), nil
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Run handlers ---

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "transcripts are disabled")
		return
	}
	runs, err := h.Runs.Runs(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []transcript.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "transcripts are disabled")
		return
	}
	id := r.PathValue("id")
	run, err := h.Runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, transcript.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries, err := h.Runs.ByRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: run, Entries: entries})
}

// --- Event handlers ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus unavailable")
		return
	}
	events, err := h.Bus.History(r.URL.Query().Get("run_id"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*comms.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	count := -1
	if tasks, err := h.Tasks.List(r.Context()); err == nil {
		count = len(tasks)
	}
	resp := map[string]any{
		"status":      "ok",
		"version":     h.Version,
		"search":      h.Search,
		"transcripts": h.Runs != nil,
		"tasks":       count,
	}
	if !h.StartAt.IsZero() {
		resp["uptime_seconds"] = int(time.Since(h.StartAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
