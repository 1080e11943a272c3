package registry

import (
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"
)

// MatchKind classifies how a raw value relates to a whitelist.
type MatchKind int

const (
	MatchUnknown MatchKind = iota
	MatchExact
	MatchCorrected
	MatchAmbiguous
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchCorrected:
		return "corrected"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Match is the result of resolving one value against one category.
// Canonical is set for exact and corrected matches. Candidates holds the
// tied members of an ambiguous match or the suggestions for an unknown one.
type Match struct {
	Kind       MatchKind
	Canonical  string
	Score      float64
	Candidates []string
}

// MatcherConfig holds the correction thresholds.
type MatcherConfig struct {
	AcceptThreshold float64
	Margin          float64
	SuggestionFloor float64
	MaxCandidates   int
}

// Matcher corrects near-miss values to whitelist members.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	return &Matcher{cfg: cfg}
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// normalized forms, in [0,1].
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	return similarity(a, b)
}

func similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

type scored struct {
	member int
	score  float64
}

// Resolve matches value against a category of the snapshot.
//
// Order: exact spelling, token containment, then edit similarity. A value
// whose numeric tokens differ from a member's is never corrected to it, so
// "Compressor-3" stays unknown even when "Compressor-1" is one edit away.
func (m *Matcher) Resolve(s *Snapshot, cat Category, value string) Match {
	idx := s.cats[cat]
	key := Normalize(value)
	if idx == nil || key == "" {
		return Match{Kind: MatchUnknown}
	}

	if pos, ok := idx.byKey[key]; ok {
		return Match{Kind: MatchExact, Canonical: idx.members[pos].Name, Score: 1}
	}

	qTokens := Tokens(value)
	qDigits := DigitTokens(qTokens)

	// Token containment: "compressor" names every compressor.
	var contained []int
	seen := make(map[int]bool)
	for _, f := range idx.forms {
		if seen[f.member] {
			continue
		}
		if containsAll(f.tokens, qTokens) && (len(qDigits) == 0 || sameDigits(qDigits, f.digits)) {
			seen[f.member] = true
			contained = append(contained, f.member)
		}
	}
	switch {
	case len(contained) == 1:
		pos := contained[0]
		return Match{Kind: MatchCorrected, Canonical: idx.members[pos].Name, Score: m.bestScore(idx, pos, key)}
	case len(contained) > 1:
		return Match{Kind: MatchAmbiguous, Candidates: m.names(idx, contained)}
	}

	// Edit similarity, best spelling per member.
	best := make(map[int]float64)
	for _, f := range idx.forms {
		if len(qDigits) > 0 && !sameDigits(qDigits, f.digits) {
			continue
		}
		if sc := similarity(key, f.key); sc > best[f.member] {
			best[f.member] = sc
		}
	}
	ranked := make([]scored, 0, len(best))
	for pos, sc := range best {
		ranked = append(ranked, scored{member: pos, score: sc})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].member < ranked[j].member
	})

	if len(ranked) > 0 && ranked[0].score >= m.cfg.AcceptThreshold {
		top := ranked[0]
		if len(ranked) == 1 || top.score-ranked[1].score >= m.cfg.Margin {
			return Match{Kind: MatchCorrected, Canonical: idx.members[top.member].Name, Score: top.score}
		}
		var tied []int
		for _, r := range ranked {
			if top.score-r.score < m.cfg.Margin {
				tied = append(tied, r.member)
			}
		}
		return Match{Kind: MatchAmbiguous, Score: top.score, Candidates: m.names(idx, tied)}
	}

	return Match{Kind: MatchUnknown, Candidates: m.suggest(idx, key)}
}

func (m *Matcher) bestScore(idx *index, pos int, key string) float64 {
	var best float64
	for _, f := range idx.forms {
		if f.member == pos {
			if sc := similarity(key, f.key); sc > best {
				best = sc
			}
		}
	}
	return best
}

func (m *Matcher) names(idx *index, positions []int) []string {
	sort.Ints(positions)
	out := make([]string, 0, len(positions))
	for _, pos := range positions {
		if len(out) == m.cfg.MaxCandidates {
			break
		}
		out = append(out, idx.members[pos].Name)
	}
	return out
}

// suggest lists "did you mean" members. Only members at or above the
// suggestion floor qualify; subsequence hits rank ahead of plain edit
// similarity.
func (m *Matcher) suggest(idx *index, key string) []string {
	best := make(map[int]float64)
	for _, f := range idx.forms {
		if sc := similarity(key, f.key); sc >= m.cfg.SuggestionFloor && sc > best[f.member] {
			best[f.member] = sc
		}
	}
	if len(best) == 0 {
		return nil
	}

	keys := make([]string, len(idx.forms))
	for i, f := range idx.forms {
		keys[i] = f.key
	}
	subseq := make(map[int]int)
	for _, hit := range fuzzy.Find(key, keys) {
		pos := idx.forms[hit.Index].member
		if _, ok := best[pos]; !ok {
			continue
		}
		if cur, ok := subseq[pos]; !ok || hit.Score > cur {
			subseq[pos] = hit.Score
		}
	}

	ranked := make([]int, 0, len(best))
	for pos := range best {
		ranked = append(ranked, pos)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		sa, aok := subseq[a]
		sb, bok := subseq[b]
		if aok != bok {
			return aok
		}
		if aok && sa != sb {
			return sa > sb
		}
		if best[a] != best[b] {
			return best[a] > best[b]
		}
		return a < b
	})
	if len(ranked) > m.cfg.MaxCandidates {
		ranked = ranked[:m.cfg.MaxCandidates]
	}
	out := make([]string, len(ranked))
	for i, pos := range ranked {
		out[i] = idx.members[pos].Name
	}
	return out
}
