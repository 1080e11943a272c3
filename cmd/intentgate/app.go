package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"intentgate/internal/config"
	"intentgate/internal/logging"
	"intentgate/internal/perception"
	"intentgate/internal/registry"
	"intentgate/internal/resolver"
	"intentgate/internal/telemetry"
	"intentgate/internal/usage"
)

// app is the assembled pipeline shared by every command.
type app struct {
	cfg        *config.Config
	source     registry.Source
	registry   *registry.Registry
	usage      *usage.Tracker
	dispatcher *telemetry.Dispatcher
	metrics    *prometheus.Registry
	resolver   *resolver.Resolver

	closers []func() error
}

// openSource opens the configured whitelist source.
func openSource(c *config.Config) (registry.Source, func() error, error) {
	switch c.Registry.Source {
	case "sqlite":
		src, err := registry.OpenSQLiteSource(c.Registry.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return registry.NewFileSource(c.Registry.Path), nil, nil
	}
}

// newApp wires the registry, the model client, usage tracking, telemetry and
// the resolver. A failed first registry load is logged, not fatal: the
// registry keeps retrying on its schedule and health reports it.
func newApp(ctx context.Context, c *config.Config, withTelemetry bool) (*app, error) {
	boot := logging.Get(logging.CategoryBoot)
	a := &app{cfg: c, metrics: prometheus.NewRegistry()}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	src, closeSrc, err := openSource(c)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry source: %w", err)
	}
	if closeSrc != nil {
		a.closers = append(a.closers, closeSrc)
	}
	a.source = src
	a.registry = registry.New(src)
	if snap, err := a.registry.Refresh(ctx); err != nil {
		boot.Warn("initial registry load failed: %v", err)
	} else {
		boot.Info("registry version %d loaded from %s", snap.Version(), snap.Source())
	}

	client, err := perception.NewClientFromConfig(ctx, c.LLM)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	if client == nil {
		boot.Info("generative tier disabled")
	}

	a.usage, err = usage.NewTracker(c.Usage.Path)
	if err != nil {
		a.close()
		return nil, err
	}

	var em resolver.Emitter
	if withTelemetry && c.Telemetry.Enabled {
		sinks := []telemetry.Sink{telemetry.NewLogSink(nil), telemetry.NewMetricsSink(a.metrics)}
		if c.Telemetry.SQLitePath != "" {
			db, err := telemetry.OpenSQLiteSink(c.Telemetry.SQLitePath)
			if err != nil {
				a.close()
				return nil, err
			}
			a.closers = append(a.closers, db.Close)
			sinks = append(sinks, db)
		}
		a.dispatcher = telemetry.NewDispatcher(c.Telemetry.QueueSize, sinks...)
		em = a.dispatcher
	}

	a.resolver = resolver.NewFromConfig(c, a.registry, client, a.usage, em)
	return a, nil
}

// close flushes usage and releases stores in reverse order of opening.
func (a *app) close() {
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			logging.Get(logging.CategoryUsage).Warn("failed to save usage: %v", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Get(logging.CategoryBoot).Warn("close: %v", err)
		}
	}
}
