// Package resolver is the single entry point of the intent pipeline.
//
// One call to Resolve is one conversational turn: answer an open
// clarification or run the tiers, fill gaps from session context, validate
// against the whitelist and commit the session.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intentgate/internal/config"
	"intentgate/internal/logging"
	"intentgate/internal/perception"
	"intentgate/internal/registry"
	"intentgate/internal/session"
	"intentgate/internal/telemetry"
	"intentgate/internal/types"
	"intentgate/internal/usage"
	"intentgate/internal/validation"
)

// SnapshotSource hands out the current whitelist.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Emitter accepts per-turn telemetry.
type Emitter interface {
	Emit(ev telemetry.Event)
}

// Options wires the resolver. Usage and Telemetry are optional.
type Options struct {
	Orchestrator *perception.Orchestrator
	Validator    *validation.Validator
	Context      *session.ContextManager
	Sessions     *session.Store
	Registry     SnapshotSource
	Usage        *usage.Tracker
	Telemetry    Emitter

	HistoryLimit int
	HistoryTurns int
}

// Resolver runs turns. It is safe for concurrent use; turns of one session
// are serialized, turns of different sessions are not.
type Resolver struct {
	opts Options
	now  func() time.Time
}

// New creates a resolver.
func New(opts Options) *Resolver {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = config.HistoryLimit
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = config.HistoryTurnsForModel
	}
	return &Resolver{opts: opts, now: time.Now}
}

// Sessions exposes the session store.
func (r *Resolver) Sessions() *session.Store { return r.opts.Sessions }

// turnOutput is what one turn produced before ids are attached.
type turnOutput struct {
	result    types.Result
	escalated bool
}

// Resolve processes one utterance for a session. An empty sessionID starts a
// new session. If ctx ends before the turn completes, ctx.Err() is returned
// and the session is left exactly as it was.
func (r *Resolver) Resolve(ctx context.Context, utterance, sessionID string) (types.Result, error) {
	start := r.now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	turnID := uuid.NewString()
	reqLog := logging.WithRequestID(logging.CategoryResolver, turnID).WithField("session_id", sessionID)

	sess, created := r.opts.Sessions.Acquire(sessionID)
	if created {
		reqLog.Debug("new session")
	}
	snap := r.opts.Registry.Snapshot()

	var out turnOutput
	err := sess.Do(ctx, func(d *session.Data) error {
		var err error
		out, err = r.turn(ctx, d, turnID, utterance, snap)
		return err
	})
	if err != nil {
		reqLog.Info("turn abandoned: %v", err)
		return types.Result{}, err
	}

	res := out.result
	res.SessionID = sessionID
	res.TurnID = turnID
	latency := r.now().Sub(start)
	reqLog.Info("%s tier=%d reason=%s confidence=%.3f latency=%v", res.Status, res.SourceTier, res.Reason, res.Confidence, latency)

	if r.opts.Usage != nil {
		r.opts.Usage.Track(usage.TurnEvent{
			Tier:      res.SourceTier,
			Status:    res.Status,
			Reason:    res.Reason,
			Latency:   latency,
			Escalated: out.escalated,
		})
	}
	if r.opts.Telemetry != nil {
		r.opts.Telemetry.Emit(telemetry.Event{
			SessionID:  sessionID,
			TurnID:     turnID,
			Utterance:  utterance,
			SourceTier: res.SourceTier,
			Confidence: res.Confidence,
			Outcome:    res.Status,
			Reason:     res.Reason,
			Latency:    latency,
			At:         start,
		})
	}
	return res, nil
}

func (r *Resolver) turn(ctx context.Context, d *session.Data, turnID, utterance string, snap *registry.Snapshot) (turnOutput, error) {
	now := r.now()
	log := logging.Get(logging.CategorySession)

	if p := d.Pending; p != nil {
		if r.opts.Context.Expired(p, now) {
			log.Info("clarification for %s abandoned after %v", p.Slot, now.Sub(p.AskedAt).Round(time.Second))
			d.ClearPending()
			if r.opts.Usage != nil {
				r.opts.Usage.TrackReason(types.ReasonClarificationTimeout)
			}
		} else if in, ok := r.opts.Context.Answer(utterance, p, snap); ok {
			log.Debug("utterance answers pending %s", p.Slot)
			outcome := r.opts.Validator.Validate(in, snap)
			if _, again := outcome.(types.NeedsClarification); !again {
				d.ClearPending()
			}
			return turnOutput{result: r.finish(d, turnID, utterance, in, outcome, now)}, nil
		}
	}

	req := perception.Request{
		Utterance: utterance,
		History:   historyFor(d.Recent(r.opts.HistoryTurns)),
		Snapshot:  snap,
	}
	cand, trace, err := r.opts.Orchestrator.Resolve(ctx, req)
	escalated := trace.Escalated(types.TierGenerative)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return turnOutput{}, ctxErr
		}
		reason := types.ReasonFor(err)
		if reason != types.ReasonLowConfidence {
			reason = types.ReasonParseFailure
		}
		return turnOutput{result: r.reject(types.Rejected{Reason: reason, Detail: err.Error()}, types.TierNone, 0), escalated: escalated}, nil
	}

	in, err := r.opts.Context.Inherit(cand, d.Sticky)
	if err != nil {
		return turnOutput{result: r.reject(types.Rejected{Reason: types.ReasonFor(err), Detail: err.Error()}, cand.SourceTier, cand.Confidence), escalated: escalated}, nil
	}

	outcome := r.opts.Validator.Validate(in, snap)
	return turnOutput{result: r.finish(d, turnID, utterance, in, outcome, now), escalated: escalated}, nil
}

// finish applies an outcome to the working copy of the session and builds
// the result. Rejections leave the session as it was. An open clarification
// survives unrelated turns; a new clarification replaces it.
func (r *Resolver) finish(d *session.Data, turnID, utterance string, in types.Intent, outcome types.Outcome, now time.Time) types.Result {
	switch o := outcome.(type) {
	case types.Valid:
		intent := o.Intent
		d.Remember(intent)
		d.Record(session.Turn{ID: turnID, Utterance: utterance, Intent: &intent, Status: types.StatusValid, At: now}, r.opts.HistoryLimit)
		return types.Result{
			Status:     types.StatusValid,
			Intent:     &intent,
			Command:    o.Command,
			SourceTier: intent.SourceTier,
			Confidence: intent.Confidence,
		}

	case types.NeedsClarification:
		partial := o.Partial
		if o.Slot != "" {
			d.Ask(o, now)
		}
		d.Record(session.Turn{ID: turnID, Utterance: utterance, Intent: &partial, Status: types.StatusNeedsClarification, At: now}, r.opts.HistoryLimit)
		return types.Result{
			Status:     types.StatusNeedsClarification,
			Intent:     &partial,
			Prompt:     clarificationPrompt(o),
			Candidates: o.Candidates,
			Slot:       o.Slot,
			Reason:     o.Reason,
			SourceTier: partial.SourceTier,
			Confidence: partial.Confidence,
		}

	case types.Rejected:
		return r.reject(o, in.SourceTier, in.Confidence)
	}
	panic(fmt.Sprintf("resolver: unhandled outcome %T", outcome))
}

func (r *Resolver) reject(o types.Rejected, tier types.Tier, confidence float64) types.Result {
	return types.Result{
		Status:     types.StatusRejected,
		Prompt:     rejectionPrompt(o),
		Reason:     o.Reason,
		SourceTier: tier,
		Confidence: confidence,
	}
}

func historyFor(turns []session.Turn) []perception.Turn {
	out := make([]perception.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, perception.Turn{Utterance: t.Utterance, Intent: t.Intent})
	}
	return out
}
