package config

import "time"

// Resolution thresholds.
//
// These numbers were tuned against recorded operator utterances. They are
// exposed through ResolverConfig so deployments can adjust them, but the
// defaults below are the reference values.
const (
	// FuzzyAcceptThreshold is the minimum normalized edit similarity for a
	// near-miss entity to be snapped to a whitelist member. At 0.80 a single
	// typo in a ten-character name is accepted and two typos in a short name
	// are not.
	FuzzyAcceptThreshold = 0.80

	// FuzzyAmbiguityMargin is how far the best fuzzy match must lead the
	// runner-up. Anything closer is reported as ambiguous rather than picked.
	FuzzyAmbiguityMargin = 0.05

	// SuggestionFloor is the similarity above which a rejected value still
	// yields "did you mean" candidates.
	SuggestionFloor = 0.50

	// Tier2AcceptThreshold is the structured parser's acceptance floor. An
	// exact keyword with no filled slot scores 0.665 and passes; a prefix
	// keyword with no filled slot scores 0.56 and escalates.
	Tier2AcceptThreshold = 0.60

	// Tier3AcceptThreshold is the generative parser's acceptance floor.
	Tier3AcceptThreshold = 0.50

	// MinConfidence is the validator floor below which a non-fast-match
	// intent is sent back for rephrasing.
	MinConfidence = 0.50

	// MaxCandidates caps the options listed in a clarification.
	MaxCandidates = 5

	// MaxRankingLimit caps "top N" requests.
	MaxRankingLimit = 50
)

// Timing defaults.
const (
	// Tier3Timeout bounds one generative-model call. A local 3B model
	// answers the intent schema in well under a second on the edge boxes.
	Tier3Timeout = 3 * time.Second

	SessionTTL           = 30 * time.Minute
	SweepInterval        = time.Minute
	ClarificationTimeout = 2 * time.Minute

	// HistoryLimit is the number of turns kept per session.
	HistoryLimit = 10

	// HistoryTurnsForModel is how many recent turns Tier-3 sees.
	HistoryTurnsForModel = 2

	// SessionShards is the number of lock shards in the session store.
	SessionShards = 32

	RegistryRefreshSpec = "@every 5m"
)
