package perception

import (
	"context"
	"regexp"

	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// fastRule is one anchored pattern over normalized text.
type fastRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) types.Intent
}

// FastMatcher is Tier-1: a short ordered list of whole-utterance patterns.
// The first matching rule wins, so more specific rules come first. It does no
// I/O and never looks at the registry or the session.
type FastMatcher struct {
	rules []fastRule
}

const timeAlt = `today|yesterday|this week|last week|this month|last month|last 24 hours|last hour`

// NewFastMatcher creates the Tier-1 matcher with the built-in rules.
func NewFastMatcher() *FastMatcher {
	return &FastMatcher{rules: []fastRule{
		{
			name:    "help",
			pattern: regexp.MustCompile(`^(?:help|commands|what can you do|what can i ask)$`),
			build: func(m []string) types.Intent {
				return types.NewIntent(types.KindHelp, 1)
			},
		},
		{
			// Must precede the ranking rules: "forecast top 3 tomorrow" is a
			// prediction, not a ranking.
			name:    "forecast",
			pattern: regexp.MustCompile(`^(?:forecast|predict)(?: the)?(?: top (\d+))?(?: (power|energy|consumption))?(?: for)? (tomorrow|next week)$`),
			build: func(m []string) types.Intent {
				in := types.NewIntent(types.KindPrediction, 1)
				in.Set(types.SlotLimit, m[1])
				in.Set(types.SlotMetric, m[2])
				in.Set(types.SlotTimeRange, m[3])
				return in
			},
		},
		{
			name:    "top-n",
			pattern: regexp.MustCompile(`^top (\d+)$`),
			build: func(m []string) types.Intent {
				in := types.NewIntent(types.KindRanking, 1)
				in.Set(types.SlotLimit, m[1])
				return in
			},
		},
		{
			name:    "top-n-by-metric",
			pattern: regexp.MustCompile(`^top (\d+)(?: machines| consumers)? by (power|energy|consumption|temperature|pressure|vibration|efficiency|runtime)(?: (` + timeAlt + `))?$`),
			build: func(m []string) types.Intent {
				in := types.NewIntent(types.KindRanking, 1)
				in.Set(types.SlotLimit, m[1])
				in.Set(types.SlotMetric, m[2])
				in.Set(types.SlotTimeRange, m[3])
				return in
			},
		},
		{
			name:    "anomalies",
			pattern: regexp.MustCompile(`^(?:show )?(?:any )?(?:anomaly|anomalies)(?: (` + timeAlt + `))?$`),
			build: func(m []string) types.Intent {
				in := types.NewIntent(types.KindAnomaly, 1)
				in.Set(types.SlotTimeRange, m[1])
				return in
			},
		},
		{
			name:    "overview",
			pattern: regexp.MustCompile(`^(?:factory|plant|site) (?:overview|summary|status)$`),
			build: func(m []string) types.Intent {
				return types.NewIntent(types.KindOverview, 1)
			},
		},
	}}
}

func (f *FastMatcher) Number() types.Tier { return types.TierFastMatch }
func (f *FastMatcher) Name() string       { return "fastmatch" }

func (f *FastMatcher) Attempt(_ context.Context, req Request) (types.Intent, error) {
	text := registry.Normalize(req.Utterance)
	for _, r := range f.rules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return r.build(m), nil
		}
	}
	return types.Intent{}, types.ErrNoMatch
}

// RuleFor returns the name of the rule that matches utterance, or "".
func (f *FastMatcher) RuleFor(utterance string) string {
	text := registry.Normalize(utterance)
	for _, r := range f.rules {
		if r.pattern.MatchString(text) {
			return r.name
		}
	}
	return ""
}
