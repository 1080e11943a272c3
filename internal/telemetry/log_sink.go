package telemetry

import (
	"context"

	"go.uber.org/zap"

	"intentgate/internal/logging"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink logs through the telemetry category unless logger is given.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = logging.Get(logging.CategoryTelemetry).Zap()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, ev Event) error {
	s.logger.Info("turn",
		zap.String("session_id", ev.SessionID),
		zap.String("turn_id", ev.TurnID),
		zap.String("utterance", ev.Utterance),
		zap.Int("source_tier", int(ev.SourceTier)),
		zap.Float64("confidence", ev.Confidence),
		zap.String("outcome", string(ev.Outcome)),
		zap.String("reason", string(ev.Reason)),
		zap.Duration("latency", ev.Latency),
	)
	return nil
}
