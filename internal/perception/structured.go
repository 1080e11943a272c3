package perception

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// Keyword and slot scores.
const (
	kwExact  = 0.95
	kwPrefix = 0.80

	slotExact   = 1.0
	slotPartial = 0.75
	slotGeneric = 0.5
)

var limitLead = map[string]bool{"top": true, "first": true, "bottom": true, "best": true, "worst": true}
var limitTrail = map[string]bool{"machines": true, "consumers": true, "assets": true}

// StructuredParser is Tier-2: keyword detection plus span-consuming slot
// extraction against the registry's vocabularies.
type StructuredParser struct {
	mu    sync.Mutex
	snap  *registry.Snapshot
	vocab *vocabulary
}

// NewStructuredParser creates the Tier-2 parser.
func NewStructuredParser() *StructuredParser {
	return &StructuredParser{}
}

func (p *StructuredParser) Number() types.Tier { return types.TierStructured }
func (p *StructuredParser) Name() string       { return "structured" }

type phrase struct {
	tokens    []string
	canonical string
}

type vocabulary struct {
	machines []phrase
	metrics  []phrase
	times    []phrase
	sources  []phrase
	groups   []phrase
	// machineTokens holds every token of every machine spelling.
	machineTokens map[string]bool
}

func buildVocabulary(s *registry.Snapshot) *vocabulary {
	conv := func(cat registry.Category) []phrase {
		var out []phrase
		for _, sp := range s.Spellings(cat) {
			out = append(out, phrase{tokens: strings.Fields(sp.Key), canonical: sp.Canonical})
		}
		return out
	}
	v := &vocabulary{
		machines:      conv(registry.CategoryMachines),
		metrics:       conv(registry.CategoryMetrics),
		times:         conv(registry.CategoryTimeRanges),
		sources:       conv(registry.CategoryEnergySources),
		groups:        conv(registry.CategoryGroups),
		machineTokens: make(map[string]bool),
	}
	for _, ph := range v.machines {
		for _, t := range ph.tokens {
			v.machineTokens[t] = true
		}
	}
	return v
}

// vocabularyFor rebuilds the vocabulary when the registry snapshot changes.
func (p *StructuredParser) vocabularyFor(s *registry.Snapshot) *vocabulary {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vocab == nil || p.snap != s {
		p.vocab = buildVocabulary(s)
		p.snap = s
	}
	return p.vocab
}

// hit is one extracted span.
type hit struct {
	pos   int
	value string
	score float64
}

// scan holds the tokens of one utterance and which are already consumed.
type scan struct {
	toks []string
	used []bool
}

func (s *scan) free(i, n int) bool {
	if i+n > len(s.toks) {
		return false
	}
	for j := i; j < i+n; j++ {
		if s.used[j] {
			return false
		}
	}
	return true
}

func (s *scan) consume(i, n int) {
	for j := i; j < i+n; j++ {
		s.used[j] = true
	}
}

func (s *scan) matchAt(i int, tokens []string) bool {
	if !s.free(i, len(tokens)) {
		return false
	}
	for j, t := range tokens {
		if s.toks[i+j] != t {
			return false
		}
	}
	return true
}

// takeAll consumes every occurrence of every phrase, longest phrases first.
func (s *scan) takeAll(phrases []phrase) []hit {
	var hits []hit
	for _, ph := range phrases {
		for i := 0; i+len(ph.tokens) <= len(s.toks); i++ {
			if s.matchAt(i, ph.tokens) {
				s.consume(i, len(ph.tokens))
				hits = append(hits, hit{pos: i, value: ph.canonical, score: slotExact})
			}
		}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].pos < hits[b].pos })
	return hits
}

func isNumber(t string) bool {
	if t == "" {
		return false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isCue(t string) bool {
	for _, c := range followUpCues {
		if c == t {
			return true
		}
	}
	return false
}

// wordish reports whether a token may be part of a machine name.
func wordish(t string) bool {
	return len(t) >= 2 && !isNumber(t) && !stopwords[t] && !keywordTokens[t] && !isCue(t)
}

// kindHit is the outcome of keyword detection.
type kindHit struct {
	kind  types.Kind
	kw    float64
	prio  int
	spans [][2]int
}

// detectKind finds the announced kind. Exact hits beat prefix hits; among
// hits of the same strength the higher priority wins.
func detectKind(s *scan, text string) (kindHit, bool) {
	var best kindHit
	found := false
	better := func(c kindHit) bool {
		if !found {
			return true
		}
		if c.kw != best.kw {
			return c.kw > best.kw
		}
		return c.prio > best.prio
	}

	for _, e := range KindCorpus {
		c := kindHit{kind: e.Kind, prio: e.Priority}
		for _, syn := range e.Synonyms {
			st := strings.Fields(syn)
			for i := 0; i+len(st) <= len(s.toks); i++ {
				if s.matchAt(i, st) {
					c.kw = kwExact
					c.spans = append(c.spans, [2]int{i, len(st)})
				}
			}
		}
		if c.kw == 0 {
			for _, re := range e.Patterns {
				if re.MatchString(text) {
					c.kw = kwExact
					break
				}
			}
		}
		if c.kw == 0 {
			for i, tok := range s.toks {
				for _, syn := range e.Synonyms {
					if !strings.Contains(syn, " ") && prefixHit(tok, syn) {
						c.kw = kwPrefix
						c.spans = append(c.spans, [2]int{i, 1})
					}
				}
			}
		}
		if c.kw > 0 && better(c) {
			best = c
			found = true
		}
	}
	return best, found
}

// prefixHit accepts inflections such as "forecasting" or "statuses".
func prefixHit(tok, syn string) bool {
	if tok == syn || len(tok) < 5 || len(syn) < 5 {
		return false
	}
	n := 0
	for n < len(tok) && n < len(syn) && tok[n] == syn[n] {
		n++
	}
	return n >= 5 && float64(n) >= 0.7*float64(len(syn))
}

var numberWord = regexp.MustCompile(`^\d+$`)

func (p *StructuredParser) Attempt(ctx context.Context, req Request) (types.Intent, error) {
	if err := ctx.Err(); err != nil {
		return types.Intent{}, err
	}
	snap := req.Snapshot
	if snap == nil {
		snap = registry.Empty()
	}
	v := p.vocabularyFor(snap)

	toks := registry.Tokens(req.Utterance)
	if len(toks) == 0 {
		return types.Intent{}, types.ErrNoMatch
	}
	s := &scan{toks: toks, used: make([]bool, len(toks))}
	text := strings.Join(toks, " ")

	kh, hasKind := detectKind(s, text)

	times := s.takeAll(v.times)

	var limit string
	for i := 0; i < len(toks); i++ {
		if limit != "" {
			break
		}
		switch {
		case limitLead[toks[i]] && i+1 < len(toks) && numberWord.MatchString(toks[i+1]) && s.free(i+1, 1):
			limit = toks[i+1]
			s.consume(i, 2)
		case numberWord.MatchString(toks[i]) && i+1 < len(toks) && limitTrail[toks[i+1]] && s.free(i, 1):
			limit = toks[i]
			s.consume(i, 2)
		}
	}

	// Kind keywords are not entity text.
	for _, sp := range kh.spans {
		s.consume(sp[0], sp[1])
	}

	machines := s.takeAll(v.machines)
	metrics := s.takeAll(v.metrics)
	sources := s.takeAll(v.sources)
	groups := s.takeAll(v.groups)

	// Generic machine-looking text: "frobnicator 9000".
	for i := 0; i+1 < len(toks); i++ {
		if s.free(i, 2) && wordish(toks[i]) && isNumber(toks[i+1]) {
			machines = append(machines, hit{pos: i, value: toks[i] + " " + toks[i+1], score: slotGeneric})
			s.consume(i, 2)
		}
	}

	// Partial machine names: words that occur in some machine spelling.
	for i := 0; i < len(toks); i++ {
		if !s.free(i, 1) || !wordish(toks[i]) || len(toks[i]) < 3 || !v.machineTokens[toks[i]] {
			continue
		}
		j := i
		for j+1 < len(toks) && s.free(j+1, 1) && wordish(toks[j+1]) && v.machineTokens[toks[j+1]] {
			j++
		}
		machines = append(machines, hit{pos: i, value: strings.Join(toks[i:j+1], " "), score: slotPartial})
		s.consume(i, j-i+1)
		i = j
	}
	sort.Slice(machines, func(a, b int) bool { return machines[a].pos < machines[b].pos })

	hasEntities := len(times)+len(machines)+len(metrics)+len(sources)+len(groups) > 0 || limit != ""

	kind, kw := kh.kind, kh.kw
	switch {
	case hasKind:
	case len(sources) > 0 && len(machines) == 0:
		kind, kw = types.KindSource, kwExact
	case len(metrics) > 0:
		kind, kw = types.KindMetric, kwExact
		if metrics[0].value == "power" {
			kind = types.KindPower
		}
	case len(sources) > 0:
		kind, kw = types.KindSource, kwExact
	case hasEntities && isCue(toks[0]) || hasEntities && len(toks) > 1 && isCue(toks[0]+" "+toks[1]):
		kind, kw = types.KindFollowUp, kwPrefix
	default:
		return types.Intent{}, types.ErrNoMatch
	}

	in := types.NewIntent(kind, 0)
	scores := make(map[types.Slot]float64)

	if kind == types.KindComparison || (kind == types.KindFollowUp && len(machines) > 1) {
		vals := make([]string, len(machines))
		var sum float64
		for i, h := range machines {
			vals[i] = h.value
			sum += h.score
		}
		in.SetList(types.SlotMachines, vals)
		if len(machines) >= types.MinComparisonMachines {
			scores[types.SlotMachines] = sum / float64(len(machines))
		} else if len(machines) == 1 {
			scores[types.SlotMachines] = machines[0].score / 2
		}
	} else if len(machines) > 0 {
		in.Set(types.SlotMachine, machines[0].value)
		scores[types.SlotMachine] = machines[0].score
	}
	if len(metrics) > 0 && kind != types.KindPower {
		in.Set(types.SlotMetric, metrics[0].value)
		scores[types.SlotMetric] = metrics[0].score
	}
	if len(times) > 0 {
		in.Set(types.SlotTimeRange, times[0].value)
	}
	if len(sources) > 0 {
		in.Set(types.SlotEnergySource, sources[0].value)
		scores[types.SlotEnergySource] = sources[0].score
	}
	if len(groups) > 0 {
		in.Set(types.SlotGroup, groups[0].value)
	}
	in.Set(types.SlotLimit, limit)

	if kind != types.KindFollowUp {
		keepAllowed(&in)
	}

	fill := 1.0
	if req := types.RequiredSlots(kind); len(req) > 0 {
		var sum float64
		for _, slot := range req {
			sum += scores[slot]
		}
		fill = sum / float64(len(req))
	}
	in.Confidence = kw * (0.7 + 0.3*fill)
	return in, nil
}

// keepAllowed drops slots the kind does not accept.
func keepAllowed(in *types.Intent) {
	allowed := make(map[types.Slot]bool)
	for _, s := range types.AllowedSlots(in.Kind) {
		allowed[s] = true
	}
	for slot := range in.Entities {
		if !allowed[slot] {
			delete(in.Entities, slot)
		}
	}
}
