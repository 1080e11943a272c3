package perception

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intentgate/internal/logging"
	"intentgate/internal/types"
)

// Stage is a tier with its acceptance threshold.
type Stage struct {
	Tier      Tier
	Threshold float64
}

// Attempt records what one tier did during a turn.
type Attempt struct {
	Tier       types.Tier       `json:"tier"`
	Name       string           `json:"name"`
	Candidate  bool             `json:"candidate"`
	Confidence float64          `json:"confidence,omitempty"`
	Accepted   bool             `json:"accepted"`
	Reason     types.ReasonCode `json:"reason,omitempty"`
	Latency    time.Duration    `json:"latency"`
}

// Trace is the per-turn record of tier attempts.
type Trace struct {
	Attempts []Attempt `json:"attempts"`
}

// Escalated reports whether the given tier was reached.
func (t Trace) Escalated(tier types.Tier) bool {
	for _, a := range t.Attempts {
		if a.Tier == tier {
			return true
		}
	}
	return false
}

// Orchestrator runs the tiers in order and stops at the first candidate that
// clears its tier's threshold. It stamps SourceTier and never changes a
// candidate's confidence.
type Orchestrator struct {
	stages []Stage
}

// NewOrchestrator creates an orchestrator over stages, tried in the given
// order.
func NewOrchestrator(stages ...Stage) *Orchestrator {
	return &Orchestrator{stages: stages}
}

// Stages returns the configured stages.
func (o *Orchestrator) Stages() []Stage {
	out := make([]Stage, len(o.stages))
	copy(out, o.stages)
	return out
}

// Resolve returns the accepted intent. When no tier accepts, the error wraps
// types.ErrLowConfidence if some tier produced a candidate and
// types.ErrParseFailure otherwise. Tier-3 schema violations and timeouts are
// folded into those two and only visible in the trace. A cancelled ctx is
// returned as ctx.Err().
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (types.Intent, Trace, error) {
	var (
		trace     Trace
		sawCand   bool
		bestBelow float64
	)
	log := logging.Get(logging.CategoryResolver)

	for _, st := range o.stages {
		if err := ctx.Err(); err != nil {
			return types.Intent{}, trace, err
		}

		start := time.Now()
		cand, err := st.Tier.Attempt(ctx, req)
		att := Attempt{Tier: st.Tier.Number(), Name: st.Tier.Name(), Latency: time.Since(start)}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				trace.Attempts = append(trace.Attempts, att)
				return types.Intent{}, trace, ctxErr
			}
			if errors.Is(err, context.Canceled) {
				trace.Attempts = append(trace.Attempts, att)
				return types.Intent{}, trace, err
			}
			if !errors.Is(err, types.ErrNoMatch) {
				att.Reason = types.ReasonFor(err)
				log.Warn("tier %d (%s) failed: %v", st.Tier.Number(), st.Tier.Name(), err)
			}
			trace.Attempts = append(trace.Attempts, att)
			continue
		}

		att.Candidate = true
		att.Confidence = cand.Confidence
		if cand.Confidence >= st.Threshold {
			att.Accepted = true
			trace.Attempts = append(trace.Attempts, att)
			cand.SourceTier = st.Tier.Number()
			log.Debug("tier %d accepted %s at %.3f", st.Tier.Number(), cand.Kind, cand.Confidence)
			return cand, trace, nil
		}

		att.Reason = types.ReasonLowConfidence
		trace.Attempts = append(trace.Attempts, att)
		sawCand = true
		if cand.Confidence > bestBelow {
			bestBelow = cand.Confidence
		}
		log.Debug("tier %d declined %s at %.3f < %.3f", st.Tier.Number(), cand.Kind, cand.Confidence, st.Threshold)
	}

	if sawCand {
		return types.Intent{}, trace, fmt.Errorf("best candidate %.3f below threshold: %w", bestBelow, types.ErrLowConfidence)
	}
	return types.Intent{}, trace, fmt.Errorf("no tier produced a candidate: %w", types.ErrParseFailure)
}
