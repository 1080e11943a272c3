package usage

import (
	"time"

	"intentgate/internal/types"
)

// UsageData represents the root structure stored in persistence.
type UsageData struct {
	Version   string          `json:"version"`
	SavedAt   time.Time       `json:"saved_at"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// TurnEvent describes one finished resolver turn.
type TurnEvent struct {
	Tier    types.Tier
	Status  types.Status
	Reason  types.ReasonCode
	Latency time.Duration
	// Escalated is set when the generative tier was attempted.
	Escalated bool
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Turns          int64            `json:"turns"`
	Escalations    int64            `json:"escalations"`
	TotalLatencyMS int64            `json:"total_latency_ms"`
	ByTier         map[string]int64 `json:"by_tier"`
	ByOutcome      map[string]int64 `json:"by_outcome"`
	ByReason       map[string]int64 `json:"by_reason"`
}

// MeanLatency is the average turn latency.
func (s AggregatedStats) MeanLatency() time.Duration {
	if s.Turns == 0 {
		return 0
	}
	return time.Duration(s.TotalLatencyMS/s.Turns) * time.Millisecond
}
