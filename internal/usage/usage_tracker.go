package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"intentgate/internal/logging"
	"intentgate/internal/types"
)

var (
	tiers    = []types.Tier{types.TierNone, types.TierFastMatch, types.TierStructured, types.TierGenerative}
	outcomes = []types.Status{types.StatusValid, types.StatusNeedsClarification, types.StatusRejected}
	reasons  = []types.ReasonCode{
		types.ReasonParseFailure,
		types.ReasonLowConfidence,
		types.ReasonUnknownEntity,
		types.ReasonAmbiguousEntity,
		types.ReasonMissingRequiredSlot,
		types.ReasonInvalidValue,
		types.ReasonSchemaViolation,
		types.ReasonInferenceTimeout,
		types.ReasonClarificationTimeout,
	}
)

// Tracker counts resolver turns. Counting uses atomic increments only; the
// counter maps are built once and never written afterwards.
type Tracker struct {
	turns       atomic.Int64
	escalations atomic.Int64
	latencyMS   atomic.Int64
	byTier      map[types.Tier]*atomic.Int64
	byOutcome   map[types.Status]*atomic.Int64
	byReason    map[types.ReasonCode]*atomic.Int64

	// persistence
	mu        sync.Mutex
	filePath  string
	dirty     bool
	saveDelay time.Duration
	timer     *time.Timer
}

// NewTracker creates a tracker persisted at path. An empty path keeps the
// counters in memory only.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{
		byTier:    make(map[types.Tier]*atomic.Int64, len(tiers)),
		byOutcome: make(map[types.Status]*atomic.Int64, len(outcomes)),
		byReason:  make(map[types.ReasonCode]*atomic.Int64, len(reasons)),
		filePath:  path,
		saveDelay: 5 * time.Second,
	}
	for _, k := range tiers {
		t.byTier[k] = new(atomic.Int64)
	}
	for _, k := range outcomes {
		t.byOutcome[k] = new(atomic.Int64)
	}
	for _, k := range reasons {
		t.byReason[k] = new(atomic.Int64)
	}

	if path == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}
	if err := t.Load(); err != nil {
		// A corrupt file only loses history; counting starts fresh.
		logging.Get(logging.CategoryUsage).Warn("ignoring unreadable usage file %s: %v", path, err)
	}
	return t, nil
}

// Track records one finished turn.
func (t *Tracker) Track(ev TurnEvent) {
	t.turns.Add(1)
	t.latencyMS.Add(ev.Latency.Milliseconds())
	if ev.Escalated {
		t.escalations.Add(1)
	}
	if c, ok := t.byTier[ev.Tier]; ok {
		c.Add(1)
	}
	if c, ok := t.byOutcome[ev.Status]; ok {
		c.Add(1)
	}
	t.TrackReason(ev.Reason)
	t.scheduleSave()
}

// TrackReason counts a reason on its own, e.g. an abandoned clarification.
func (t *Tracker) TrackReason(r types.ReasonCode) {
	if c, ok := t.byReason[r]; ok {
		c.Add(1)
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	s := AggregatedStats{
		Turns:          t.turns.Load(),
		Escalations:    t.escalations.Load(),
		TotalLatencyMS: t.latencyMS.Load(),
		ByTier:         make(map[string]int64, len(t.byTier)),
		ByOutcome:      make(map[string]int64, len(t.byOutcome)),
		ByReason:       make(map[string]int64, len(t.byReason)),
	}
	for k, c := range t.byTier {
		s.ByTier[k.String()] = c.Load()
	}
	for k, c := range t.byOutcome {
		s.ByOutcome[string(k)] = c.Load()
	}
	for k, c := range t.byReason {
		s.ByReason[string(k)] = c.Load()
	}
	return s
}

// Load reads the usage data from disk and adds it to the counters.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var ud UsageData
	if err := json.Unmarshal(data, &ud); err != nil {
		return err
	}

	agg := ud.Aggregate
	t.turns.Add(agg.Turns)
	t.escalations.Add(agg.Escalations)
	t.latencyMS.Add(agg.TotalLatencyMS)
	for k, c := range t.byTier {
		c.Add(agg.ByTier[k.String()])
	}
	for k, c := range t.byOutcome {
		c.Add(agg.ByOutcome[string(k)])
	}
	for k, c := range t.byReason {
		c.Add(agg.ByReason[string(k)])
	}
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	if t.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(UsageData{Version: "1.0", SavedAt: time.Now().UTC(), Aggregate: t.Stats()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.filePath), 0755); err != nil {
		return err
	}
	t.dirty = false
	return os.WriteFile(t.filePath, data, 0644)
}

// scheduleSave debounces writes to one per saveDelay.
func (t *Tracker) scheduleSave() {
	if t.filePath == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dirty {
		return
	}
	t.dirty = true
	t.timer = time.AfterFunc(t.saveDelay, func() {
		if err := t.Save(); err != nil {
			logging.Get(logging.CategoryUsage).Warn("usage autosave failed: %v", err)
		}
	})
}

// Close stops a pending autosave and writes the counters once more.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return t.saveLocked()
}
