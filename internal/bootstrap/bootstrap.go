// Package bootstrap assembles a runnable switchboard from configuration:
// one model client per role, the task store, the tool sets, the event bus,
// the transcript recorder and the orchestration graph.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/agent"
	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/config"
	"github.com/GoCodeAlone/switchboard/graph"
	"github.com/GoCodeAlone/switchboard/plugin"
	"github.com/GoCodeAlone/switchboard/provider/registry"
	"github.com/GoCodeAlone/switchboard/router"
	"github.com/GoCodeAlone/switchboard/search"
	"github.com/GoCodeAlone/switchboard/state"
	"github.com/GoCodeAlone/switchboard/task"
	"github.com/GoCodeAlone/switchboard/tools"
	"github.com/GoCodeAlone/switchboard/transcript"
)

// App is a fully wired switchboard.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Graph    *graph.Graph
	Team     *agent.Team
	Store    *task.FileStore
	Bus      *comms.InMemoryBus
	Recorder *transcript.Recorder // nil when transcripts are off
	// Search names the active search backend, or "placeholder".
	Search string

	db *sql.DB
}

type options struct {
	providers *registry.Registry
	getenv    func(string) string
}

// Option adjusts how Build resolves its dependencies.
type Option func(*options)

// WithProviders uses reg instead of a fresh provider registry.
func WithProviders(reg *registry.Registry) Option {
	return func(o *options) { o.providers = reg }
}

// WithGetenv overrides environment lookup for credentials.
func WithGetenv(fn func(string) string) Option {
	return func(o *options) { o.getenv = fn }
}

// Build wires an App from cfg. Missing model credentials fail here; a
// missing search credential selects the placeholder search tool.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}
	if o.providers == nil {
		o.providers = registry.New()
	}
	o.providers.SetGetenv(o.getenv)
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  task.NewFileStore(cfg.TasksPath(), task.WithLogger(logger.Named("tasks"))),
		Bus:    comms.NewInMemoryBus(0),
	}

	backend, err := searchBackend(cfg.Search, o.getenv)
	if err != nil {
		return nil, err
	}
	app.Search = "placeholder"
	if backend != nil {
		app.Search = backend.Name()
	}
	toolsets := map[state.AgentID]*plugin.Registry{
		state.Todo: plugin.NewRegistry(tools.TaskTools(app.Store)...),
		state.Web:  plugin.NewRegistry(tools.SearchTools(backend, cfg.Search.APIKeyEnv)...),
	}

	planner, err := o.providers.Get(ctx, cfg.ModelFor(config.RouterRole))
	if err != nil {
		return nil, fmt.Errorf("router model: %w", err)
	}

	graphOpts := []graph.Option{
		graph.WithBus(app.Bus),
		graph.WithLogger(logger.Named("graph")),
		graph.WithMaxSteps(cfg.MaxSteps),
	}
	if lg := cfg.LoopGuard; lg.Enabled {
		graphOpts = append(graphOpts, graph.WithLoopGuard(graph.LoopConfig{
			MaxConsecutive: lg.MaxConsecutive,
			MaxErrors:      lg.MaxErrors,
			MaxAlternating: lg.MaxAlternating,
			MaxNoProgress:  lg.MaxNoProgress,
		}))
	}

	var nodes []*agent.Node
	for _, id := range state.Roster {
		p, err := o.providers.Get(ctx, cfg.ModelFor(string(id)))
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", id, err)
		}
		acfg := agent.Config{ID: id, Provider: p, Logger: logger.Named("agent")}
		if reg, ok := toolsets[id]; ok {
			acfg.Tools = reg.Defs()
			graphOpts = append(graphOpts, graph.WithTools(id, tools.NewNode(id, reg, logger.Named("tools"))))
		}
		n, err := agent.NewNode(acfg)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		graphOpts = append(graphOpts, graph.WithAgent(id, n))
	}
	if app.Team, err = agent.NewTeam(nodes...); err != nil {
		return nil, err
	}

	if path := cfg.TranscriptPath(); path != "" {
		db, err := transcript.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		guard := transcript.NewSecretGuard()
		guard.LoadEnv(o.getenv, secretEnvNames(cfg)...)
		app.db = db
		app.Recorder = transcript.NewRecorder(db, guard, logger.Named("transcript"))
		app.Bus.Subscribe(comms.TopicAll, app.Recorder.Handle)
	}

	rt := router.New(planner, router.WithLogger(logger.Named("router")))
	if app.Graph, err = graph.New(rt, graphOpts...); err != nil {
		app.Close()
		return nil, err
	}

	logger.Info("switchboard ready",
		zap.String("tasks", app.Store.Path()),
		zap.String("search", app.Search),
		zap.Bool("transcripts", app.Recorder != nil),
		zap.Int("max_steps", cfg.MaxSteps))
	return app, nil
}

// Close releases the transcript database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func searchBackend(cfg config.SearchConfig, getenv func(string) string) (search.Provider, error) {
	key := getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "tavily", "":
		t, err := search.NewTavily(search.TavilyConfig{APIKey: key, BaseURL: cfg.BaseURL, MaxResults: cfg.MaxResults})
		if errors.Is(err, search.ErrNoAPIKey) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("search: unknown provider %q", cfg.Provider)
	}
}

func secretEnvNames(cfg *config.Config) []string {
	names := []string{cfg.Search.APIKeyEnv}
	seen := map[string]bool{cfg.Search.APIKeyEnv: true}
	roles := append([]string{config.RouterRole}, rosterNames()...)
	for _, role := range roles {
		for _, n := range registry.KeyEnvNames(cfg.ModelFor(role)) {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

func rosterNames() []string {
	out := make([]string, len(state.Roster))
	for i, id := range state.Roster {
		out[i] = string(id)
	}
	return out
}
