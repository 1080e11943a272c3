package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"intentgate/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AcquireCreatesOnce(t *testing.T) {
	st := NewStore(4, time.Minute)

	var wg sync.WaitGroup
	created := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c := st.Acquire("shared")
			created <- c
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, st.Len())
}

func TestStore_GetDeleteIDs(t *testing.T) {
	st := NewStore(0, 0)
	for i := 0; i < 100; i++ {
		st.Acquire(fmt.Sprintf("s-%03d", i))
	}
	assert.Equal(t, 100, st.Len())
	assert.Len(t, st.IDs(), 100)
	assert.Equal(t, "s-000", st.IDs()[0])

	_, ok := st.Get("s-042")
	assert.True(t, ok)
	assert.True(t, st.Delete("s-042"))
	assert.False(t, st.Delete("s-042"))
	_, ok = st.Get("s-042")
	assert.False(t, ok)
}

func TestStore_SweepUsesLastActivity(t *testing.T) {
	st := NewStore(8, 30*time.Minute)
	base := time.Now()
	st.now = func() time.Time { return base }

	st.Acquire("idle")
	active, _ := st.Acquire("active")
	active.Touch(base.Add(25 * time.Minute))

	expired := st.Sweep(base.Add(31 * time.Minute))
	assert.Equal(t, []string{"idle"}, expired)
	_, ok := st.Get("active")
	assert.True(t, ok)
}

func TestStore_SessionsDoNotBlockEachOther(t *testing.T) {
	st := NewStore(1, time.Minute)
	a, _ := st.Acquire("a")
	b, _ := st.Acquire("b")

	inTurn := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Do(context.Background(), func(d *Data) error {
			close(inTurn)
			<-release
			return nil
		})
	}()
	<-inTurn

	// Same shard, different session: must complete while a is mid-turn.
	finished := make(chan error, 1)
	go func() { finished <- b.Do(context.Background(), func(d *Data) error { return nil }) }()
	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session b waited on session a")
	}
	st.Sweep(time.Now())
	close(release)
	<-done
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	st := NewStore(2, time.Millisecond)
	st.Acquire("old")

	var mu sync.Mutex
	var gone []string
	w := NewSweeper(st, 10*time.Millisecond, func(id string) {
		mu.Lock()
		gone = append(gone, id)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return st.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"old"}, gone)
}

func askStatus(t *testing.T, s *Session, at time.Time) {
	t.Helper()
	err := s.Do(context.Background(), func(d *Data) error {
		d.Ask(types.NeedsClarification{
			Partial: types.NewIntent(types.KindStatus, 0.87),
			Slot:    types.SlotMachine,
			Reason:  types.ReasonMissingRequiredSlot,
		}, at)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ExpirePendingClosesStaleClarifications(t *testing.T) {
	st := NewStore(4, time.Hour)
	base := time.Now()

	stale, _ := st.Acquire("stale")
	askStatus(t, stale, base)
	fresh, _ := st.Acquire("fresh")
	askStatus(t, fresh, base.Add(90*time.Second))
	st.Acquire("quiet")

	got := st.ExpirePending(base.Add(150*time.Second), 2*time.Minute)
	assert.Equal(t, []string{"stale"}, got)

	v := stale.View()
	assert.Nil(t, v.Pending)
	assert.Equal(t, StateIdle, v.State)
	assert.Equal(t, StateAwaitingClarification, fresh.View().State)
}

func TestStore_ExpirePendingSkipsSessionsMidTurn(t *testing.T) {
	st := NewStore(1, time.Hour)
	base := time.Now()
	s, _ := st.Acquire("busy")
	askStatus(t, s, base)

	inTurn := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Do(context.Background(), func(d *Data) error {
			close(inTurn)
			<-release
			return errors.New("abandoned")
		})
	}()
	<-inTurn

	assert.Empty(t, st.ExpirePending(base.Add(time.Hour), time.Minute))
	close(release)
	<-done

	assert.Equal(t, []string{"busy"}, st.ExpirePending(base.Add(time.Hour), time.Minute))
}

func TestSweeper_ClosesUnansweredClarifications(t *testing.T) {
	st := NewStore(2, time.Hour)
	base := time.Now()
	s, _ := st.Acquire("s1")
	askStatus(t, s, base)

	var abandoned []string
	w := NewSweeper(st, time.Minute, nil).WithClarificationTimeout(2*time.Minute, func(id string) {
		abandoned = append(abandoned, id)
	})

	assert.Equal(t, 0, w.SweepOnce(base.Add(time.Minute)))
	assert.Empty(t, abandoned)

	assert.Equal(t, 0, w.SweepOnce(base.Add(3*time.Minute)))
	assert.Equal(t, []string{"s1"}, abandoned)
	assert.Equal(t, StateIdle, s.View().State)
	assert.Equal(t, 1, st.Len())
}
