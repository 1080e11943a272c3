package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsSink exports turn counts, latency and confidence to Prometheus.
type MetricsSink struct {
	turns      *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	confidence *prometheus.HistogramVec
}

// NewMetricsSink registers the resolver metrics with reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	f := promauto.With(reg)
	return &MetricsSink{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intentgate",
			Subsystem: "resolver",
			Name:      "turns_total",
			Help:      "Resolver turns by source tier, outcome and reason",
		}, []string{"tier", "outcome", "reason"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intentgate",
			Subsystem: "resolver",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency by source tier",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25, 1, 3, 5},
		}, []string{"tier"}),
		confidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intentgate",
			Subsystem: "resolver",
			Name:      "confidence",
			Help:      "Confidence of accepted candidates by source tier",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}, []string{"tier"}),
	}
}

func (m *MetricsSink) Name() string { return "prometheus" }

func (m *MetricsSink) Write(_ context.Context, ev Event) error {
	tier := ev.SourceTier.String()
	m.turns.WithLabelValues(tier, string(ev.Outcome), string(ev.Reason)).Inc()
	m.latency.WithLabelValues(tier).Observe(ev.Latency.Seconds())
	if ev.Confidence > 0 {
		m.confidence.WithLabelValues(tier).Observe(ev.Confidence)
	}
	return nil
}
