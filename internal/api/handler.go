// Package api exposes the resolver over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intentgate/internal/logging"
	"intentgate/internal/registry"
	"intentgate/internal/resolver"
	"intentgate/internal/usage"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 64 << 10

// DispatchStats reports telemetry delivery counters.
type DispatchStats interface {
	Stats() (written, dropped int64)
}

// Options wires the handler. Usage, Telemetry and Gatherer are optional.
type Options struct {
	Resolver  *resolver.Resolver
	Registry  *registry.Registry
	Usage     *usage.Tracker
	Telemetry DispatchStats
	Gatherer  prometheus.Gatherer
}

// Handler serves the HTTP API.
type Handler struct {
	resolver  *resolver.Resolver
	registry  *registry.Registry
	usage     *usage.Tracker
	telemetry DispatchStats
	gatherer  prometheus.Gatherer
	started   time.Time
}

// NewHandler creates a handler.
func NewHandler(opts Options) *Handler {
	g := opts.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Handler{
		resolver:  opts.Resolver,
		registry:  opts.Registry,
		usage:     opts.Usage,
		telemetry: opts.Telemetry,
		gatherer:  g,
		started:   time.Now(),
	}
}

// Router builds the chi router with every route registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(accessLog)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", h.Resolve)
		r.Get("/sessions/{id}", h.GetSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Get("/registry", h.GetRegistry)
		r.Post("/registry/refresh", h.RefreshRegistry)
		r.Get("/stats", h.Stats)
	})
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryAPI).Warn("failed to encode response: %v", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithRequestID(logging.CategoryAPI, chiMiddleware.GetReqID(r.Context())).
			WithField("status", ww.Status()).
			WithField("bytes", ww.BytesWritten()).
			Debug("%s %s in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
