package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" ranking ")
	require.True(t, ok)
	assert.Equal(t, KindRanking, k)

	_, ok = ParseKind("FOLLOW_UP")
	assert.False(t, ok, "follow-up is not an executable kind")

	_, ok = ParseKind("DELETE_EVERYTHING")
	assert.False(t, ok)
}

func TestIntent_CloneIsDeep(t *testing.T) {
	in := NewIntent(KindComparison, 0.9)
	in.SetList(SlotMachines, []string{"Compressor-1", "Pump-2"})
	in.Set(SlotMetric, "energy")

	out := in.Clone()
	out.Entities[SlotMachines].Values[0] = "changed"
	out.Set(SlotMetric, "power")

	assert.Equal(t, "Compressor-1", in.Entities[SlotMachines].Values[0])
	assert.Equal(t, "energy", in.Value(SlotMetric))
}

func TestIntent_SetEmptyClears(t *testing.T) {
	in := NewIntent(KindStatus, 1)
	in.Set(SlotMachine, "Compressor-1")
	in.Set(SlotMachine, "")
	assert.False(t, in.Has(SlotMachine))
}

func TestIntent_PopulatedSlotsOrder(t *testing.T) {
	in := NewIntent(KindMetric, 1)
	in.Set(SlotTimeRange, "today")
	in.Set(SlotMetric, "power")
	in.Set(SlotMachine, "Compressor-1")
	in.Entities["colour"] = Entity{Value: "red"}

	got := in.PopulatedSlots()
	want := []Slot{SlotMachine, SlotMetric, SlotTimeRange, "colour"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("PopulatedSlots mismatch (-want +got):\n%s", diff)
	}
}

func TestRequiredSlots_EveryKindHasVariant(t *testing.T) {
	for _, k := range CommandKinds() {
		c, ok := zeroCommand(k)
		require.True(t, ok, "kind %s has no command variant", k)
		assert.Equal(t, k, c.Kind())
		for _, req := range c.RequiredSlots() {
			assert.Contains(t, AllowedSlots(k), req, "%s requires a slot it does not allow", k)
		}
	}
	assert.Nil(t, RequiredSlots(KindFollowUp))
}

func TestBuildCommand(t *testing.T) {
	t.Run("ranking defaults limit", func(t *testing.T) {
		in := NewIntent(KindRanking, 1)
		cmd, err := BuildCommand(in)
		require.NoError(t, err)
		assert.Equal(t, RankingQuery{Limit: DefaultRankingLimit}, cmd)
	})

	t.Run("metric query", func(t *testing.T) {
		in := NewIntent(KindMetric, 1)
		in.Set(SlotMachine, "Compressor-1")
		in.Set(SlotMetric, "energy")
		cmd, err := BuildCommand(in)
		require.NoError(t, err)
		assert.Equal(t, MetricQuery{Machine: "Compressor-1", Metric: "energy"}, cmd)
	})

	t.Run("missing required slot", func(t *testing.T) {
		_, err := BuildCommand(NewIntent(KindStatus, 1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingRequiredSlot))
	})

	t.Run("comparison needs two machines", func(t *testing.T) {
		in := NewIntent(KindComparison, 1)
		in.SetList(SlotMachines, []string{"Compressor-1"})
		_, err := BuildCommand(in)
		assert.ErrorIs(t, err, ErrMissingRequiredSlot)
	})

	t.Run("follow-up is not buildable", func(t *testing.T) {
		_, err := BuildCommand(NewIntent(KindFollowUp, 1))
		assert.Error(t, err)
	})
}

func TestReasonFor(t *testing.T) {
	cases := map[error]ReasonCode{
		nil:                    ReasonNone,
		ErrParseFailure:        ReasonParseFailure,
		ErrLowConfidence:       ReasonLowConfidence,
		ErrInferenceTimeout:    ReasonInferenceTimeout,
		ErrSchemaViolation:     ReasonSchemaViolation,
		errors.New("anything"): ReasonParseFailure,
	}
	for err, want := range cases {
		assert.Equal(t, want, ReasonFor(err), "err=%v", err)
	}
	wrapped := fmt.Errorf("tier 3: %w", ErrInferenceTimeout)
	assert.Equal(t, ReasonInferenceTimeout, ReasonFor(wrapped))
}
