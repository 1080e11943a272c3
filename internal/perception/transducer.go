// Package perception turns utterances into candidate intents.
//
// Three tiers are tried in order by the Orchestrator: a fast pattern
// matcher, a keyword/slot parser and a schema-constrained generative model.
// Nothing in this package consults the whitelist for validity; candidates
// are checked afterwards by the validator.
package perception

import (
	"context"
	"regexp"
	"strings"

	"intentgate/internal/registry"
	"intentgate/internal/types"
)

// Turn is one past exchange offered to tiers as context.
type Turn struct {
	Utterance string
	Intent    *types.Intent
}

// Request is the input to one tier attempt.
type Request struct {
	Utterance string
	History   []Turn
	Snapshot  *registry.Snapshot
}

// Tier is one resolution strategy. Attempt returns types.ErrNoMatch when the
// tier recognises nothing.
type Tier interface {
	Number() types.Tier
	Name() string
	Attempt(ctx context.Context, req Request) (types.Intent, error)
}

// =============================================================================
// KIND CORPUS
// =============================================================================

// KindEntry defines a command kind with the words that announce it.
type KindEntry struct {
	Kind     types.Kind
	Synonyms []string         // normalized words or phrases
	Patterns []*regexp.Regexp // matched against normalized text
	Priority int              // higher priority wins when several kinds are named
}

// KindCorpus maps operator vocabulary to command kinds.
var KindCorpus = []KindEntry{
	{
		Kind:     types.KindComparison,
		Synonyms: []string{"compare", "comparison", "versus", "vs", "difference between", "side by side"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\b(\w+ \d+) (?:against|or) (\w+ \d+)\b`)},
		Priority: 90,
	},
	{
		Kind:     types.KindPrediction,
		Synonyms: []string{"forecast", "predict", "prediction", "projection", "expected", "will"},
		Priority: 85,
	},
	{
		Kind:     types.KindRanking,
		Synonyms: []string{"top", "rank", "ranking", "highest", "lowest", "biggest", "largest", "most", "least", "worst", "best"},
		Priority: 80,
	},
	{
		Kind:     types.KindAnomaly,
		Synonyms: []string{"anomaly", "anomalies", "anomalous", "unusual", "abnormal", "spike", "spikes", "outlier", "outliers", "alarm", "alarms"},
		Priority: 70,
	},
	{
		Kind:     types.KindStatus,
		Synonyms: []string{"status", "state", "running", "online", "offline", "health", "healthy", "condition"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^is \w+ \d+ (?:up|down|on|off)$`)},
		Priority: 60,
	},
	{
		Kind:     types.KindOverview,
		Synonyms: []string{"overview", "summary", "summarize", "dashboard", "report", "how is the plant"},
		Priority: 50,
	},
	{
		Kind:     types.KindHelp,
		Synonyms: []string{"help", "commands", "what can you do", "what can i ask"},
		Priority: 40,
	},
}

// followUpCues open an elliptical utterance that continues the last turn.
var followUpCues = []string{"what about", "how about", "and", "same for", "also", "now", "then"}

// stopwords are never part of an entity.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "and": true, "or": true,
	"what": true, "whats": true, "about": true, "show": true, "me": true, "is": true, "are": true,
	"how": true, "by": true, "in": true, "on": true, "at": true, "with": true, "to": true,
	"from": true, "last": true, "next": true, "this": true, "machine": true, "machines": true,
	"please": true, "give": true, "tell": true, "get": true, "was": true, "were": true,
	"between": true, "against": true, "s": true, "it": true, "its": true, "much": true, "many": true,
}

// keywordTokens is every single-word synonym; they are never entity text.
var keywordTokens = func() map[string]bool {
	out := make(map[string]bool)
	for _, e := range KindCorpus {
		for _, syn := range e.Synonyms {
			if !strings.Contains(syn, " ") {
				out[syn] = true
			}
		}
	}
	return out
}()
