package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"intentgate/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) turnIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, ev := range r.events {
		ids = append(ids, ev.TurnID)
	}
	return ids
}

func event(id string) Event {
	return Event{
		SessionID:  "s1",
		TurnID:     id,
		Utterance:  "top 5",
		SourceTier: types.TierFastMatch,
		Confidence: 1,
		Outcome:    types.StatusValid,
		Latency:    150 * time.Microsecond,
		At:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("disk full")}
	d := NewDispatcher(8, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Emit(event("t1"))
	d.Emit(event("t2"))
	require.Eventually(t, func() bool { return len(a.turnIDs()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"t1", "t2"}, a.turnIDs())
	assert.Equal(t, []string{"t1", "t2"}, b.turnIDs(), "a failing sink still sees every event")
}

func TestDispatcher_DropsOldestWhenFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(2, sink)

	d.Emit(event("t1"))
	d.Emit(event("t2"))
	d.Emit(event("t3"))

	_, dropped := d.Stats()
	assert.Equal(t, int64(1), dropped)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.ElementsMatch(t, []string{"t2", "t3"}, sink.turnIDs())
}

func TestDispatcher_EmitAfterStopIsDropped(t *testing.T) {
	d := NewDispatcher(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	d.Emit(event("late"))
	written, dropped := d.Stats()
	assert.Equal(t, int64(0), written)
	assert.Equal(t, int64(1), dropped)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Write(context.Background(), event("t1")))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t1", fields["turn_id"])
	assert.Equal(t, "valid", fields["outcome"])
	assert.Equal(t, int64(1), fields["source_tier"])
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsSink(reg)

	require.NoError(t, m.Write(context.Background(), event("t1")))
	rej := event("t2")
	rej.Outcome, rej.Reason, rej.SourceTier, rej.Confidence = types.StatusRejected, types.ReasonParseFailure, types.TierNone, 0
	require.NoError(t, m.Write(context.Background(), rej))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("fast_match", "valid", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("none", "rejected", "parse_failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.turns))
}

func TestSQLiteSink_RoundTrip(t *testing.T) {
	sink, err := OpenSQLiteSink(filepath.Join(t.TempDir(), "telemetry", "events.db"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, event("t1")))
	other := event("t2")
	other.SessionID = "s2"
	other.Reason = types.ReasonAmbiguousEntity
	other.Outcome = types.StatusNeedsClarification
	require.NoError(t, sink.Write(ctx, other))

	got, err := sink.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].TurnID)
	assert.Equal(t, types.TierFastMatch, got[0].SourceTier)
	assert.Equal(t, 150*time.Microsecond, got[0].Latency)
	assert.True(t, got[0].At.Equal(event("t1").At))

	all, err := sink.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].TurnID)
	assert.Equal(t, types.ReasonAmbiguousEntity, all[0].Reason)
}
