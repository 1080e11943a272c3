// Package telemetry publishes one diagnostic event per resolver turn.
//
// Events are queued by a Dispatcher and fanned out to sinks in the
// background so a slow sink never delays a turn.
package telemetry

import (
	"context"
	"time"

	"intentgate/internal/types"
)

// Event describes one resolver turn.
type Event struct {
	SessionID  string           `json:"session_id"`
	TurnID     string           `json:"turn_id"`
	Utterance  string           `json:"utterance"`
	SourceTier types.Tier       `json:"source_tier"`
	Confidence float64          `json:"confidence"`
	Outcome    types.Status     `json:"outcome"`
	Reason     types.ReasonCode `json:"reason,omitempty"`
	Latency    time.Duration    `json:"latency"`
	At         time.Time        `json:"at"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, ev Event) error
}
