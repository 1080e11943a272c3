package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"intentgate/internal/config"
	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// ContextManager resolves follow-ups against sticky context and matches
// utterances against open clarifications.
type ContextManager struct {
	matcher *registry.Matcher
	timeout time.Duration
}

// NewContextManager creates a context manager. timeout bounds how long a
// clarification stays open.
func NewContextManager(matcher *registry.Matcher, timeout time.Duration) *ContextManager {
	if timeout <= 0 {
		timeout = config.ClarificationTimeout
	}
	return &ContextManager{matcher: matcher, timeout: timeout}
}

// Timeout returns the clarification timeout.
func (c *ContextManager) Timeout() time.Duration { return c.timeout }

// Expired reports whether a pending clarification has been abandoned.
func (c *ContextManager) Expired(p *Pending, now time.Time) bool {
	return p != nil && now.Sub(p.AskedAt) > c.timeout
}

// Inherit fills slots of in from sticky context. A FOLLOW_UP takes the
// previous kind and every sticky value it does not override; any other kind
// only takes the required slots it lacks. Inherited entities are marked
// FromContext.
func (c *ContextManager) Inherit(in types.Intent, st Sticky) (types.Intent, error) {
	out := in.Clone()

	slots := types.RequiredSlots(out.Kind)
	if out.Kind == types.KindFollowUp {
		if st.LastKind == "" {
			return types.Intent{}, fmt.Errorf("follow-up without a previous turn: %w", types.ErrParseFailure)
		}
		out.Kind = st.LastKind
		if e, ok := out.Get(types.SlotMachines); ok && len(e.Values) >= types.MinComparisonMachines {
			out.Kind = types.KindComparison
		}
		slots = types.AllowedSlots(out.Kind)
	}

	for _, slot := range slots {
		if types.IsSatisfied(out, slot) {
			continue
		}
		if slot == types.SlotMachines {
			c.inheritMachines(&out, st)
			continue
		}
		if e, ok := st.value(slot); ok {
			e.FromContext = true
			out.Entities[slot] = e
		}
	}
	return out, nil
}

// inheritMachines completes a comparison list: the previous list when none
// was given, the previous list with a single new machine appended after a
// comparison, or the previous machine ahead of a single new one.
func (c *ContextManager) inheritMachines(out *types.Intent, st Sticky) {
	have := out.Entities[types.SlotMachines].Values
	if len(have) == 0 {
		if m := out.Value(types.SlotMachine); m != "" {
			have = []string{m}
		}
	}
	var merged []string
	switch {
	case len(have) == 0 && len(st.LastMachines) >= types.MinComparisonMachines:
		merged = append([]string(nil), st.LastMachines...)
	case len(have) == 1 && st.LastKind == types.KindComparison && len(st.LastMachines) >= types.MinComparisonMachines:
		merged = append([]string(nil), st.LastMachines...)
		if !containsFold(merged, have[0]) {
			merged = append(merged, have[0])
		}
	case len(have) == 1 && st.LastMachine != "" && st.LastMachine != have[0]:
		merged = []string{st.LastMachine, have[0]}
	default:
		return
	}
	out.Entities[types.SlotMachines] = types.Entity{Values: merged, FromContext: true}
	delete(out.Entities, types.SlotMachine)
}

// ordinals maps spoken positions to list indexes.
var ordinals = map[string]int{
	"first": 0, "second": 1, "third": 2, "fourth": 3, "fifth": 4,
}

// answerFiller may surround an ordinal without changing its meaning. Suffixes
// appear on their own because "2nd" tokenizes as "2", "nd".
var answerFiller = map[string]bool{
	"the": true, "number": true, "option": true, "please": true, "i": true, "mean": true, "meant": true,
	"st": true, "nd": true, "rd": true, "th": true,
}

// Answer tests utterance as a reply to p. It returns the completed intent
// when the utterance names a candidate, picks one by position, or (for slots
// where any member will do) resolves to a whitelist member. Anything else is
// not an answer and leaves p open.
func (c *ContextManager) Answer(utterance string, p *Pending, snap *registry.Snapshot) (types.Intent, bool) {
	if p == nil || p.Slot == "" {
		return types.Intent{}, false
	}
	value, ok := c.pick(utterance, p, snap)
	if !ok {
		return types.Intent{}, false
	}

	out := p.Partial.Clone()
	if p.Slot.IsList() {
		vals := append([]string(nil), out.Entities[p.Slot].Values...)
		if p.Index >= 0 && p.Index < len(vals) {
			vals[p.Index] = value
		} else {
			vals = append(vals, value)
		}
		from := out.Entities[p.Slot].FromContext
		out.Entities[p.Slot] = types.Entity{Values: vals, FromContext: from}
	} else {
		out.Set(p.Slot, value)
	}
	return out, true
}

func (c *ContextManager) pick(utterance string, p *Pending, snap *registry.Snapshot) (string, bool) {
	key := registry.Normalize(utterance)
	if key == "" {
		return "", false
	}
	for _, cand := range p.Candidates {
		if registry.Normalize(cand) == key {
			return cand, true
		}
	}
	if i, ok := ordinal(registry.Tokens(utterance)); ok && i < len(p.Candidates) {
		return p.Candidates[i], true
	}

	cat, ok := registry.CategoryForSlot(p.Slot)
	if !ok || snap == nil {
		return "", false
	}
	m := c.matcher.Resolve(snap, cat, utterance)
	if m.Kind != registry.MatchExact && m.Kind != registry.MatchCorrected {
		return "", false
	}
	// An ambiguity is only settled by one of the offered members.
	if p.Reason == types.ReasonAmbiguousEntity && !contains(p.Candidates, m.Canonical) {
		return "", false
	}
	return m.Canonical, true
}

// ordinal reads "the second one", "2nd" or a bare "2" as a zero-based index.
func ordinal(tokens []string) (int, bool) {
	idx, found := -1, false
	for _, t := range tokens {
		if i, ok := ordinals[t]; ok {
			if found {
				return 0, false
			}
			idx, found = i, true
			continue
		}
		// "one" reaches us as "1": "the second one".
		if answerFiller[t] || (t == "1" && found) {
			continue
		}
		if n, err := strconv.Atoi(t); err == nil && !found && n >= 1 {
			idx, found = n-1, true
			continue
		}
		return 0, false
	}
	return idx, found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
