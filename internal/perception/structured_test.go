package perception

import (
	"context"
	"testing"

	"intentgate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, utterance string) types.Intent {
	t.Helper()
	in, err := NewStructuredParser().Attempt(context.Background(), Request{
		Utterance: utterance,
		Snapshot:  sampleSnapshot(t),
	})
	require.NoError(t, err, utterance)
	return in
}

func TestStructured_MetricImpliesKind(t *testing.T) {
	in := parse(t, "compressor one power")
	assert.Equal(t, types.KindPower, in.Kind)
	assert.Equal(t, "Compressor-1", in.Value(types.SlotMachine))
	assert.False(t, in.Has(types.SlotMetric), "power is implied by the kind")
	assert.InDelta(t, 0.95, in.Confidence, 1e-9)

	in = parse(t, "what about energy")
	assert.Equal(t, types.KindMetric, in.Kind)
	assert.Equal(t, "energy", in.Value(types.SlotMetric))
	assert.False(t, in.Has(types.SlotMachine))
	assert.InDelta(t, 0.95*(0.7+0.3*0.5), in.Confidence, 1e-9)
}

func TestStructured_GenericMachineToken(t *testing.T) {
	in := parse(t, "Frobnicator-9000 status")
	assert.Equal(t, types.KindStatus, in.Kind)
	assert.Equal(t, "frobnicator 9000", in.Value(types.SlotMachine))
	assert.InDelta(t, 0.95*(0.7+0.3*0.5), in.Confidence, 1e-9)
}

func TestStructured_PartialMachine(t *testing.T) {
	in := parse(t, "compressor status")
	assert.Equal(t, types.KindStatus, in.Kind)
	assert.Equal(t, "compressor", in.Value(types.SlotMachine))
	assert.InDelta(t, 0.95*(0.7+0.3*0.75), in.Confidence, 1e-9)
}

func TestStructured_Comparison(t *testing.T) {
	in := parse(t, "compare compressor 1 and pump 2 energy yesterday")
	assert.Equal(t, types.KindComparison, in.Kind)
	assert.Equal(t, []string{"Compressor-1", "Pump-2"}, in.Entities[types.SlotMachines].Values)
	assert.Equal(t, "energy", in.Value(types.SlotMetric))
	assert.Equal(t, "yesterday", in.Value(types.SlotTimeRange))
	assert.InDelta(t, 0.95, in.Confidence, 1e-9)
}

func TestStructured_FollowUp(t *testing.T) {
	in := parse(t, "and yesterday?")
	assert.Equal(t, types.KindFollowUp, in.Kind)
	assert.Equal(t, "yesterday", in.Value(types.SlotTimeRange))
	assert.InDelta(t, 0.80, in.Confidence, 1e-9)
}

func TestStructured_SourceAndGroup(t *testing.T) {
	in := parse(t, "natural gas use in hall b last week")
	assert.Equal(t, types.KindSource, in.Kind)
	assert.Equal(t, "natural_gas", in.Value(types.SlotEnergySource))
	assert.Equal(t, "Hall-B", in.Value(types.SlotGroup))
	assert.Equal(t, "last_week", in.Value(types.SlotTimeRange))
}

func TestStructured_SourceWinsOverMetricWithoutMachine(t *testing.T) {
	in := parse(t, "gas consumption this week")
	assert.Equal(t, types.KindSource, in.Kind)
	assert.Equal(t, "natural_gas", in.Value(types.SlotEnergySource))
	assert.Equal(t, "this_week", in.Value(types.SlotTimeRange))
	assert.False(t, in.Has(types.SlotMetric))

	in = parse(t, "pump 2 gas consumption today")
	assert.Equal(t, types.KindMetric, in.Kind)
	assert.Equal(t, "energy", in.Value(types.SlotMetric))
	assert.Equal(t, "Pump-2", in.Value(types.SlotMachine))
}

func TestStructured_RankingLimit(t *testing.T) {
	in := parse(t, "which are the top 3 machines for power in hall a")
	assert.Equal(t, types.KindRanking, in.Kind)
	assert.Equal(t, "3", in.Value(types.SlotLimit))
	assert.Equal(t, "power", in.Value(types.SlotMetric))
	assert.Equal(t, "Hall-A", in.Value(types.SlotGroup))
}

func TestStructured_PrefixKeywordScoresLower(t *testing.T) {
	in := parse(t, "statuses")
	assert.Equal(t, types.KindStatus, in.Kind)
	assert.InDelta(t, 0.80*0.7, in.Confidence, 1e-9)

	in = parse(t, "status")
	assert.InDelta(t, 0.95*0.7, in.Confidence, 1e-9)
}

func TestStructured_PriorityBreaksTies(t *testing.T) {
	in := parse(t, "compare the status of pump 2 and chiller 3")
	assert.Equal(t, types.KindComparison, in.Kind)
	assert.Equal(t, []string{"Pump-2", "Chiller-3"}, in.Entities[types.SlotMachines].Values)
}

func TestStructured_NoKeyword(t *testing.T) {
	p := NewStructuredParser()
	for _, u := range []string{"hello there", "Compressor-1", "and", ""} {
		_, err := p.Attempt(context.Background(), Request{Utterance: u, Snapshot: sampleSnapshot(t)})
		assert.ErrorIs(t, err, types.ErrNoMatch, u)
	}
}

func TestStructured_VocabularyFollowsSnapshot(t *testing.T) {
	p := NewStructuredParser()
	first := sampleSnapshot(t)
	in, err := p.Attempt(context.Background(), Request{Utterance: "pump 2 status", Snapshot: first})
	require.NoError(t, err)
	assert.Equal(t, "Pump-2", in.Value(types.SlotMachine))

	second := sampleSnapshot(t)
	assert.NotSame(t, first, second)
	_, err = p.Attempt(context.Background(), Request{Utterance: "pump 2 status", Snapshot: second})
	require.NoError(t, err)
	assert.Same(t, second, p.snap)
}
