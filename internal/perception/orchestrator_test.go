package perception

import (
	"context"
	"testing"
	"time"

	"intentgate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_StopsAtFirstAcceptedTier(t *testing.T) {
	snap := sampleSnapshot(t)
	llm := &fakeLLM{resp: `{"kind":"HELP","entities":{},"confidence":1}`}
	tier3 := NewGenerativeParser(llm, time.Second, 2)
	o := NewOrchestrator(
		Stage{Tier: NewFastMatcher(), Threshold: 1},
		Stage{Tier: NewStructuredParser(), Threshold: 0.6},
		Stage{Tier: tier3, Threshold: 0.5},
	)

	in, trace, err := o.Resolve(context.Background(), Request{Utterance: "top 5", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, types.TierFastMatch, in.SourceTier)
	assert.Len(t, trace.Attempts, 1)
	assert.False(t, trace.Escalated(types.TierStructured))
	assert.Equal(t, int32(0), llm.calls.Load())

	in, trace, err = o.Resolve(context.Background(), Request{Utterance: "compressor one power", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, types.TierStructured, in.SourceTier)
	assert.InDelta(t, 0.95, in.Confidence, 1e-9)
	assert.True(t, trace.Escalated(types.TierStructured))
	assert.False(t, trace.Escalated(types.TierGenerative))
	assert.Equal(t, int32(0), llm.calls.Load())
}

func TestOrchestrator_EscalatesBelowThreshold(t *testing.T) {
	weak := types.NewIntent(types.KindStatus, 0.55)
	strong := types.NewIntent(types.KindStatus, 0.9)
	strong.Set(types.SlotMachine, "Pump-2")

	t2 := &countingTier{n: types.TierStructured, result: weak}
	t3 := &countingTier{n: types.TierGenerative, result: strong}
	o := NewOrchestrator(Stage{Tier: t2, Threshold: 0.6}, Stage{Tier: t3, Threshold: 0.5})

	in, trace, err := o.Resolve(context.Background(), Request{Utterance: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.TierGenerative, in.SourceTier)
	assert.Equal(t, 0.9, in.Confidence)
	require.Len(t, trace.Attempts, 2)
	assert.Equal(t, types.ReasonLowConfidence, trace.Attempts[0].Reason)
	assert.True(t, trace.Attempts[1].Accepted)
}

func TestOrchestrator_LowConfidenceVersusParseFailure(t *testing.T) {
	weak := &countingTier{n: types.TierStructured, result: types.NewIntent(types.KindStatus, 0.3)}
	none := &countingTier{n: types.TierGenerative, err: types.ErrNoMatch}

	_, _, err := NewOrchestrator(Stage{Tier: weak, Threshold: 0.6}, Stage{Tier: none, Threshold: 0.5}).
		Resolve(context.Background(), Request{Utterance: "x"})
	assert.ErrorIs(t, err, types.ErrLowConfidence)

	_, _, err = NewOrchestrator(Stage{Tier: none, Threshold: 0.5}).
		Resolve(context.Background(), Request{Utterance: "x"})
	assert.ErrorIs(t, err, types.ErrParseFailure)
}

func TestOrchestrator_FoldsTierThreeFailures(t *testing.T) {
	for name, llm := range map[string]*fakeLLM{
		"timeout":   {resp: `{}`, delay: 5 * time.Second},
		"malformed": {resp: `{"kind":"SHUTDOWN","entities":{},"confidence":1}`},
	} {
		t.Run(name, func(t *testing.T) {
			o := NewOrchestrator(
				Stage{Tier: NewFastMatcher(), Threshold: 1},
				Stage{Tier: NewStructuredParser(), Threshold: 0.6},
				Stage{Tier: NewGenerativeParser(llm, 30*time.Millisecond, 2), Threshold: 0.5},
			)
			_, trace, err := o.Resolve(context.Background(), Request{Utterance: "blorp the zap", Snapshot: sampleSnapshot(t)})
			assert.ErrorIs(t, err, types.ErrParseFailure)
			require.Len(t, trace.Attempts, 3)
			assert.NotEqual(t, types.ReasonNone, trace.Attempts[2].Reason)
		})
	}
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tier := &countingTier{n: types.TierFastMatch, result: types.NewIntent(types.KindHelp, 1)}

	_, _, err := NewOrchestrator(Stage{Tier: tier, Threshold: 1}).Resolve(ctx, Request{Utterance: "help"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), tier.calls.Load())
}
