package perception

import (
	"context"
	"testing"

	"intentgate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastMatcher(t *testing.T) {
	tests := []struct {
		utterance string
		rule      string
		kind      types.Kind
		slots     map[types.Slot]string
	}{
		{"top 5", "top-n", types.KindRanking, map[types.Slot]string{types.SlotLimit: "5"}},
		{"Top five!", "top-n", types.KindRanking, map[types.Slot]string{types.SlotLimit: "5"}},
		{"top 3 by energy this week", "top-n-by-metric", types.KindRanking, map[types.Slot]string{
			types.SlotLimit: "3", types.SlotMetric: "energy", types.SlotTimeRange: "this week",
		}},
		{"forecast top 3 tomorrow", "forecast", types.KindPrediction, map[types.Slot]string{
			types.SlotLimit: "3", types.SlotTimeRange: "tomorrow",
		}},
		{"predict energy for next week", "forecast", types.KindPrediction, map[types.Slot]string{
			types.SlotMetric: "energy", types.SlotTimeRange: "next week",
		}},
		{"anomalies yesterday", "anomalies", types.KindAnomaly, map[types.Slot]string{types.SlotTimeRange: "yesterday"}},
		{"help", "help", types.KindHelp, map[types.Slot]string{}},
		{"plant overview", "overview", types.KindOverview, map[types.Slot]string{}},
	}

	fm := NewFastMatcher()
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.rule, fm.RuleFor(tt.utterance))

			in, err := fm.Attempt(context.Background(), Request{Utterance: tt.utterance})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, 1.0, in.Confidence)
			got := make(map[types.Slot]string)
			for slot, e := range in.Entities {
				got[slot] = e.Value
			}
			assert.Equal(t, tt.slots, got)
		})
	}
}

func TestFastMatcher_NoMatch(t *testing.T) {
	fm := NewFastMatcher()
	for _, u := range []string{"top 5 pumps please", "Compressor-1 power", "", "forecast"} {
		_, err := fm.Attempt(context.Background(), Request{Utterance: u})
		assert.ErrorIs(t, err, types.ErrNoMatch, u)
	}
}
