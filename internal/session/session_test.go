package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"intentgate/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIntent(kind types.Kind, slots map[types.Slot]string) types.Intent {
	in := types.NewIntent(kind, 0.95)
	for s, v := range slots {
		in.Set(s, v)
	}
	return in
}

func TestData_RecordEvictsOldest(t *testing.T) {
	var d Data
	for i := 0; i < 12; i++ {
		d.Record(Turn{Utterance: string(rune('a' + i))}, 10)
	}
	require.Len(t, d.History, 10)
	assert.Equal(t, "c", d.History[0].Utterance)
	assert.Equal(t, "l", d.History[9].Utterance)
	assert.Len(t, d.Recent(2), 2)
	assert.Equal(t, "l", d.Recent(2)[1].Utterance)
}

func TestData_Remember(t *testing.T) {
	var d Data
	d.Remember(validIntent(types.KindPower, map[types.Slot]string{types.SlotMachine: "Compressor-1", types.SlotTimeRange: "today"}))
	d.Remember(validIntent(types.KindMetric, map[types.Slot]string{types.SlotMachine: "Pump-2", types.SlotMetric: "energy"}))

	want := Sticky{
		LastKind:    types.KindMetric,
		LastMachine: "Pump-2",
		LastMetric:  "energy",
	}
	if diff := cmp.Diff(want, d.Sticky); diff != "" {
		t.Errorf("sticky mismatch (-want +got):\n%s", diff)
	}
}

func TestData_RememberKeepsSlotsTheKindDoesNotTake(t *testing.T) {
	var d Data
	d.Remember(validIntent(types.KindMetric, map[types.Slot]string{
		types.SlotMachine: "Compressor-1", types.SlotMetric: "temperature", types.SlotTimeRange: "yesterday",
	}))
	d.Remember(validIntent(types.KindStatus, map[types.Slot]string{types.SlotMachine: "Pump-2"}))
	assert.Equal(t, "yesterday", d.Sticky.LastTimeRange)
	assert.Equal(t, "temperature", d.Sticky.LastMetric)

	d.Remember(validIntent(types.KindMetric, map[types.Slot]string{types.SlotMachine: "Pump-2", types.SlotMetric: "temperature"}))
	assert.Empty(t, d.Sticky.LastTimeRange)

	cmpIn := types.NewIntent(types.KindComparison, 0.9)
	cmpIn.SetList(types.SlotMachines, []string{"Compressor-1", "Pump-2"})
	d.Remember(cmpIn)
	assert.Equal(t, []string{"Compressor-1", "Pump-2"}, d.Sticky.LastMachines)
	assert.Empty(t, d.Sticky.LastMetric)
	assert.Equal(t, "Pump-2", d.Sticky.LastMachine)
}

func TestData_CloneIsDeep(t *testing.T) {
	in := validIntent(types.KindStatus, map[types.Slot]string{types.SlotMachine: "Pump-2"})
	d := Data{
		History: []Turn{{Utterance: "x", Intent: &in}},
		Sticky:  Sticky{LastMachines: []string{"A", "B"}},
		Pending: &Pending{Partial: in, Candidates: []string{"A"}},
	}
	c := d.Clone()
	c.History[0].Intent.Set(types.SlotMachine, "Boiler-4")
	c.Sticky.LastMachines[0] = "Z"
	c.Pending.Candidates[0] = "Z"
	c.Pending.Partial.Set(types.SlotMachine, "Z")

	assert.Equal(t, "Pump-2", d.History[0].Intent.Value(types.SlotMachine))
	assert.Equal(t, "A", d.Sticky.LastMachines[0])
	assert.Equal(t, "A", d.Pending.Candidates[0])
	assert.Equal(t, "Pump-2", d.Pending.Partial.Value(types.SlotMachine))
}

func TestSession_DoCommits(t *testing.T) {
	s := newSession("s1", time.Now())
	err := s.Do(context.Background(), func(d *Data) error {
		d.Remember(validIntent(types.KindStatus, map[types.Slot]string{types.SlotMachine: "Pump-2"}))
		d.Record(Turn{Utterance: "pump 2 status"}, 10)
		return nil
	})
	require.NoError(t, err)

	got := s.Data()
	assert.Equal(t, StateIdle, got.State)
	assert.Equal(t, "Pump-2", got.Sticky.LastMachine)
	assert.Len(t, got.History, 1)
}

func TestSession_DoAbortLeavesSessionUntouched(t *testing.T) {
	s := newSession("s1", time.Now())
	require.NoError(t, s.Do(context.Background(), func(d *Data) error {
		d.Remember(validIntent(types.KindPower, map[types.Slot]string{types.SlotMachine: "Compressor-1"}))
		return nil
	}))
	before := s.Data()

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Do(ctx, func(d *Data) error {
		d.Remember(validIntent(types.KindStatus, map[types.Slot]string{types.SlotMachine: "Boiler-4"}))
		d.Record(Turn{Utterance: "boiler"}, 10)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s.Data())

	boom := errors.New("boom")
	err = s.Do(context.Background(), func(d *Data) error {
		d.ClearPending()
		d.Sticky = Sticky{}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, s.Data())
}

func TestSession_StateWhileResolving(t *testing.T) {
	s := newSession("s1", time.Now())
	require.NoError(t, s.Do(context.Background(), func(d *Data) error {
		assert.Equal(t, StateResolving, s.Data().State)
		d.Ask(types.NeedsClarification{Slot: types.SlotMachine, Index: -1, Candidates: []string{"A", "B"}}, time.Now())
		return nil
	}))
	assert.Equal(t, StateAwaitingClarification, s.Data().State)
}
