// Package validation checks candidate intents against the entity whitelist.
//
// The validator is the only place where an entity value becomes canonical.
// Every tier, including the generative one, is allowed to produce values the
// registry does not know; none of them survives into a Valid outcome.
package validation

import (
	"fmt"
	"strconv"

	"intentgate/internal/config"
	"intentgate/internal/logging"
	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// Validator turns a candidate intent into an Outcome.
type Validator struct {
	matcher *registry.Matcher
	cfg     config.ResolverConfig
}

// New creates a validator from the resolver thresholds.
func New(cfg config.ResolverConfig) *Validator {
	return &Validator{
		matcher: registry.NewMatcher(registry.MatcherConfig{
			AcceptThreshold: cfg.FuzzyThreshold,
			Margin:          cfg.FuzzyMargin,
			SuggestionFloor: cfg.SuggestionFloor,
			MaxCandidates:   cfg.MaxCandidates,
		}),
		cfg: cfg,
	}
}

// Matcher exposes the fuzzy matcher so clarification answers are resolved
// with the same thresholds.
func (v *Validator) Matcher() *registry.Matcher { return v.matcher }

// finding is the first problem seen for one kind of failure.
type finding struct {
	slot       types.Slot
	index      int
	value      string
	candidates []string
}

// Validate checks every populated slot and returns exactly one outcome.
// Outcomes are chosen in priority order: ambiguous entity, unknown entity,
// invalid limit, missing required slot, low confidence, valid.
func (v *Validator) Validate(in types.Intent, snap *registry.Snapshot) types.Outcome {
	log := logging.Get(logging.CategoryValidator)
	if snap == nil {
		snap = registry.Empty()
	}
	if _, ok := types.ParseKind(string(in.Kind)); !ok {
		return types.Rejected{Reason: types.ReasonParseFailure, Detail: fmt.Sprintf("no executable kind %q", in.Kind)}
	}

	work := in.Clone()
	dropDisallowed(&work)

	var (
		ambiguous *finding
		unknown   *finding
		badLimit  string
	)

	for _, slot := range work.PopulatedSlots() {
		if _, known := types.ParseSlot(string(slot)); !known {
			return types.Rejected{Reason: types.ReasonInvalidValue, Detail: fmt.Sprintf("unknown slot %q", slot)}
		}
		if slot == types.SlotLimit {
			if _, ok := v.parseLimit(work.Value(slot)); !ok && badLimit == "" {
				badLimit = work.Value(slot)
			}
			continue
		}
		cat, _ := registry.CategoryForSlot(slot)

		if slot.IsList() {
			e := work.Entities[slot]
			var canon []string
			seen := make(map[string]bool)
			for i, raw := range e.Values {
				m := v.matcher.Resolve(snap, cat, raw)
				value := raw
				switch m.Kind {
				case registry.MatchExact, registry.MatchCorrected:
					value = m.Canonical
				case registry.MatchAmbiguous:
					if ambiguous == nil {
						ambiguous = &finding{slot: slot, index: i, value: raw, candidates: m.Candidates}
					}
				default:
					if unknown == nil {
						unknown = &finding{slot: slot, index: i, value: raw, candidates: m.Candidates}
					}
				}
				if seen[value] {
					continue
				}
				seen[value] = true
				canon = append(canon, value)
			}
			work.Entities[slot] = types.Entity{Values: canon, FromContext: e.FromContext}
			continue
		}

		e := work.Entities[slot]
		m := v.matcher.Resolve(snap, cat, e.Value)
		switch m.Kind {
		case registry.MatchExact, registry.MatchCorrected:
			if m.Kind == registry.MatchCorrected {
				log.Debug("corrected %s %q -> %q (%.2f)", slot, e.Value, m.Canonical, m.Score)
			}
			e.Value = m.Canonical
			work.Entities[slot] = e
		case registry.MatchAmbiguous:
			if ambiguous == nil {
				ambiguous = &finding{slot: slot, index: -1, value: e.Value, candidates: m.Candidates}
			}
		default:
			if unknown == nil {
				unknown = &finding{slot: slot, index: -1, value: e.Value, candidates: m.Candidates}
			}
		}
	}

	if ambiguous != nil {
		log.Debug("%s %q is ambiguous between %v", ambiguous.slot, ambiguous.value, ambiguous.candidates)
		return types.NeedsClarification{
			Partial:    work,
			Slot:       ambiguous.slot,
			Index:      ambiguous.index,
			Reason:     types.ReasonAmbiguousEntity,
			Candidates: ambiguous.candidates,
		}
	}
	if unknown != nil {
		if len(unknown.candidates) == 0 {
			log.Info("rejecting unknown %s %q", unknown.slot, unknown.value)
			return types.Rejected{
				Reason: types.ReasonUnknownEntity,
				Detail: fmt.Sprintf("unknown %s %q", unknown.slot, unknown.value),
			}
		}
		return types.NeedsClarification{
			Partial:    work,
			Slot:       unknown.slot,
			Index:      unknown.index,
			Reason:     types.ReasonUnknownEntity,
			Candidates: unknown.candidates,
		}
	}
	if badLimit != "" {
		return types.Rejected{
			Reason: types.ReasonInvalidValue,
			Detail: fmt.Sprintf("limit %q must be a whole number between 1 and %d", badLimit, v.maxLimit()),
		}
	}

	for _, slot := range types.RequiredSlots(work.Kind) {
		if types.IsSatisfied(work, slot) {
			continue
		}
		index := -1
		if slot.IsList() {
			index = len(work.Entities[slot].Values)
		}
		return types.NeedsClarification{
			Partial:    work,
			Slot:       slot,
			Index:      index,
			Reason:     types.ReasonMissingRequiredSlot,
			Candidates: v.offer(snap, slot, work),
		}
	}

	if work.SourceTier != types.TierFastMatch && work.Confidence < v.cfg.MinConfidence {
		return types.NeedsClarification{
			Partial: work,
			Index:   -1,
			Reason:  types.ReasonLowConfidence,
		}
	}

	cmd, err := types.BuildCommand(work)
	if err != nil {
		return types.Rejected{Reason: types.ReasonInvalidValue, Detail: err.Error()}
	}
	return types.Valid{Intent: work, Command: cmd}
}

func (v *Validator) maxLimit() int {
	if v.cfg.MaxRankingLimit > 0 {
		return v.cfg.MaxRankingLimit
	}
	return config.MaxRankingLimit
}

func (v *Validator) parseLimit(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > v.maxLimit() {
		return 0, false
	}
	return n, true
}

// offer lists whitelist members for a missing slot, skipping machines the
// intent already names.
func (v *Validator) offer(snap *registry.Snapshot, slot types.Slot, in types.Intent) []string {
	cat, ok := registry.CategoryForSlot(slot)
	if !ok {
		return nil
	}
	taken := make(map[string]bool)
	for _, name := range in.Entities[slot].Values {
		taken[name] = true
	}
	limit := v.cfg.MaxCandidates
	if limit <= 0 {
		limit = config.MaxCandidates
	}
	var out []string
	for _, name := range snap.Names(cat) {
		if taken[name] {
			continue
		}
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out
}

// dropDisallowed removes known slots the kind does not take.
func dropDisallowed(in *types.Intent) {
	allowed := make(map[types.Slot]bool)
	for _, s := range types.AllowedSlots(in.Kind) {
		allowed[s] = true
	}
	for slot := range in.Entities {
		if _, known := types.ParseSlot(string(slot)); known && !allowed[slot] {
			delete(in.Entities, slot)
		}
	}
}
