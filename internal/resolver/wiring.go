package resolver

import (
	"intentgate/internal/config"
	"intentgate/internal/perception"
	"intentgate/internal/session"
	"intentgate/internal/usage"
	"intentgate/internal/validation"
)

// NewFromConfig wires the standard three tiers, the validator and a fresh
// session store. client may be nil, which disables the generative tier.
func NewFromConfig(cfg *config.Config, reg SnapshotSource, client perception.LLMClient, tracker *usage.Tracker, em Emitter) *Resolver {
	rc := cfg.Resolver
	v := validation.New(rc)
	orch := perception.NewOrchestrator(
		perception.Stage{Tier: perception.NewFastMatcher(), Threshold: 1.0},
		perception.Stage{Tier: perception.NewStructuredParser(), Threshold: rc.Tier2Threshold},
		perception.Stage{Tier: perception.NewGenerativeParser(client, cfg.GetLLMTimeout(), cfg.LLM.HistoryTurns), Threshold: rc.Tier3Threshold},
	)
	return New(Options{
		Orchestrator: orch,
		Validator:    v,
		Context:      session.NewContextManager(v.Matcher(), cfg.GetClarificationTimeout()),
		Sessions:     session.NewStore(cfg.Session.Shards, cfg.GetSessionTTL()),
		Registry:     reg,
		Usage:        tracker,
		Telemetry:    em,
		HistoryLimit: cfg.Session.HistoryLimit,
		HistoryTurns: cfg.LLM.HistoryTurns,
	})
}
