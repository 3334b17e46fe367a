package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/switchboard/internal/bootstrap"
	"github.com/GoCodeAlone/switchboard/internal/version"
	"github.com/GoCodeAlone/switchboard/server"
	"github.com/GoCodeAlone/switchboard/server/api"
	"github.com/GoCodeAlone/switchboard/task"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		h := &api.Handlers{
			Graph:   app.Graph,
			Agents:  app.Team,
			Tasks:   app.Store,
			Bus:     app.Bus,
			Version: version.Version,
			Search:  app.Search,
		}
		if app.Recorder != nil {
			h.Runs = app.Recorder
		}
		srv := server.New(cfg.Server.Addr, h, logger.Named("server"))

		logger.Info("starting switchboard",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("addr", cfg.Server.Addr))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.Start)
		g.Go(func() error {
			return task.Watch(gctx, app.Store.Path(), logger.Named("tasks"), func() {
				logger.Info("task file changed", zap.String("path", app.Store.Path()))
			})
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(sctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
