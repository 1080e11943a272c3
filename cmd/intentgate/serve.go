package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"intentgate/internal/api"
	"intentgate/internal/logging"
	"intentgate/internal/registry"
	"intentgate/internal/session"
	"intentgate/internal/types"
)

// serveCmd runs the HTTP API with its background workers
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolver over HTTP",
	Long: `Starts the HTTP API together with its background workers:
  - registry refresh on the configured cron schedule
  - registry file watching (file source only)
  - idle session sweeping
  - telemetry delivery to log, Prometheus and SQLite sinks`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	// A bad schedule must fail before anything is listening.
	var refresher *registry.Refresher
	if spec := cfg.Registry.Refresh; spec != "" {
		refresher, err = registry.NewRefresher(a.registry, spec, 30*time.Second)
		if err != nil {
			return err
		}
	}

	h := api.NewHandler(api.Options{
		Resolver:  a.resolver,
		Registry:  a.registry,
		Usage:     a.usage,
		Telemetry: dispatchStats(a),
		Gatherer:  a.metrics,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if refresher != nil {
		g.Go(func() error { return refresher.Run(gctx) })
	}
	if fs, ok := a.source.(*registry.FileSource); ok && cfg.Registry.Watch {
		g.Go(func() error {
			err := fs.Watch(gctx, func() {
				_, _ = a.registry.Refresh(gctx)
			})
			if err != nil {
				// The cron refresh still picks up changes.
				logger.Warn("Registry file watch disabled", zap.Error(err))
			}
			return nil
		})
	}

	sweeper := session.NewSweeper(a.resolver.Sessions(), cfg.GetSweepInterval(), func(id string) {
		logging.Get(logging.CategorySession).Debug("session %s expired", id)
	}).WithClarificationTimeout(cfg.GetClarificationTimeout(), func(string) {
		a.usage.TrackReason(types.ReasonClarificationTimeout)
	})
	g.Go(func() error { return sweeper.Run(gctx) })

	if a.dispatcher != nil {
		g.Go(func() error { return a.dispatcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

// dispatchStats avoids handing the API a typed nil.
func dispatchStats(a *app) api.DispatchStats {
	if a.dispatcher == nil {
		return nil
	}
	return a.dispatcher
}
