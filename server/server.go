// Package server implements the switchboard HTTP server: the REST API and
// the Server-Sent Events stream of graph events.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/switchboard/comms"
	"github.com/GoCodeAlone/switchboard/server/api"
	"github.com/GoCodeAlone/switchboard/server/sse"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = ":9090"

// Server is the switchboard HTTP server.
type Server struct {
	addr    string
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *zap.Logger

	handlers *api.Handlers
	hub      *sse.Hub
	unsub    func()

	// baseCancel ends in-flight requests, including open event streams.
	baseCancel context.CancelFunc
}

// New creates a server on addr around h. When h has a bus, graph events
// are streamed on GET /events.
func New(addr string, h *api.Handlers, logger *zap.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if h.Logger == nil {
		h.Logger = logger
	}
	if h.StartAt.IsZero() {
		h.StartAt = time.Now()
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:       addr,
		mux:        http.NewServeMux(),
		logger:     logger,
		handlers:   h,
		hub:        sse.NewHub(logger),
		baseCancel: cancel,
	}
	s.httpSrv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.handlers.RegisterRoutes(s.mux)
	if s.handlers.Bus != nil {
		s.unsub = s.handlers.Bus.Subscribe(comms.TopicAll, s.hub.Handle)
		s.mux.Handle("GET /events", s.hub)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on the configured address and serves until Stop.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server and detaches from the bus.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.baseCancel()
	return s.httpSrv.Shutdown(ctx)
}
