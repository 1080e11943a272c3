// Package session holds per-conversation state for the resolver.
//
// Sessions live in a sharded Store, are expired by a Sweeper and are
// consulted by the ContextManager for follow-ups and clarification answers.
// A turn never mutates a session in place: it works on a copy of Data and
// commits it at the end, so an abandoned turn leaves no trace.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"intentgate/internal/types"
)

// State is the conversational state of a session.
type State string

const (
	StateIdle                  State = "idle"
	StateResolving             State = "resolving"
	StateAwaitingClarification State = "awaiting_clarification"
)

// Turn is one entry of the session history.
type Turn struct {
	ID        string        `json:"id"`
	Utterance string        `json:"utterance"`
	Intent    *types.Intent `json:"intent,omitempty"`
	Status    types.Status  `json:"status"`
	At        time.Time     `json:"at"`
}

// Sticky is the context carried from one valid turn to the next.
type Sticky struct {
	LastKind         types.Kind `json:"last_kind,omitempty"`
	LastMachine      string     `json:"last_machine,omitempty"`
	LastMachines     []string   `json:"last_machines,omitempty"`
	LastMetric       string     `json:"last_metric,omitempty"`
	LastTimeRange    string     `json:"last_time_range,omitempty"`
	LastEnergySource string     `json:"last_energy_source,omitempty"`
	LastGroup        string     `json:"last_group,omitempty"`
}

// value returns the sticky value for a slot.
func (s Sticky) value(slot types.Slot) (types.Entity, bool) {
	var e types.Entity
	switch slot {
	case types.SlotMachine:
		e.Value = s.LastMachine
	case types.SlotMachines:
		e.Values = append([]string(nil), s.LastMachines...)
	case types.SlotMetric:
		e.Value = s.LastMetric
	case types.SlotTimeRange:
		e.Value = s.LastTimeRange
	case types.SlotEnergySource:
		e.Value = s.LastEnergySource
	case types.SlotGroup:
		e.Value = s.LastGroup
	}
	return e, !e.IsEmpty()
}

// Pending is an open clarification question.
type Pending struct {
	Partial    types.Intent     `json:"partial"`
	Slot       types.Slot       `json:"slot"`
	Index      int              `json:"index"`
	Reason     types.ReasonCode `json:"reason"`
	Candidates []string         `json:"candidates,omitempty"`
	AskedAt    time.Time        `json:"asked_at"`
}

// Data is the mutable content of a session.
type Data struct {
	State   State    `json:"state"`
	History []Turn   `json:"history"`
	Sticky  Sticky   `json:"sticky"`
	Pending *Pending `json:"pending,omitempty"`
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	out := d
	out.History = make([]Turn, len(d.History))
	for i, t := range d.History {
		if t.Intent != nil {
			in := t.Intent.Clone()
			t.Intent = &in
		}
		out.History[i] = t
	}
	out.Sticky.LastMachines = append([]string(nil), d.Sticky.LastMachines...)
	if d.Pending != nil {
		p := *d.Pending
		p.Partial = d.Pending.Partial.Clone()
		p.Candidates = append([]string(nil), d.Pending.Candidates...)
		out.Pending = &p
	}
	return out
}

// Record appends a turn, evicting the oldest beyond limit.
func (d *Data) Record(t Turn, limit int) {
	d.History = append(d.History, t)
	if limit > 0 && len(d.History) > limit {
		d.History = append([]Turn(nil), d.History[len(d.History)-limit:]...)
	}
}

// Remember updates the sticky context from a validated intent. Every slot the
// kind accepts is overwritten, so a slot the turn left empty is forgotten
// rather than carried over from an older turn.
func (d *Data) Remember(in types.Intent) {
	d.Sticky.LastKind = in.Kind
	for _, slot := range types.AllowedSlots(in.Kind) {
		d.Sticky.set(slot, types.Entity{})
	}
	for slot, e := range in.Entities {
		if !e.IsEmpty() {
			d.Sticky.set(slot, e)
		}
	}
}

func (s *Sticky) set(slot types.Slot, e types.Entity) {
	switch slot {
	case types.SlotMachine:
		s.LastMachine = e.Value
	case types.SlotMachines:
		s.LastMachines = append([]string(nil), e.Values...)
	case types.SlotMetric:
		s.LastMetric = e.Value
	case types.SlotTimeRange:
		s.LastTimeRange = e.Value
	case types.SlotEnergySource:
		s.LastEnergySource = e.Value
	case types.SlotGroup:
		s.LastGroup = e.Value
	}
}

// Ask opens a clarification.
func (d *Data) Ask(nc types.NeedsClarification, now time.Time) {
	d.Pending = &Pending{
		Partial:    nc.Partial.Clone(),
		Slot:       nc.Slot,
		Index:      nc.Index,
		Reason:     nc.Reason,
		Candidates: append([]string(nil), nc.Candidates...),
		AskedAt:    now,
	}
	d.State = StateAwaitingClarification
}

// ClearPending closes any open clarification.
func (d *Data) ClearPending() {
	d.Pending = nil
	d.State = StateIdle
}

// Recent returns up to n of the latest turns, oldest first.
func (d Data) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(d.History) <= n {
		return d.History
	}
	return d.History[len(d.History)-n:]
}

// Session is one conversation.
type Session struct {
	ID        string
	CreatedAt time.Time

	// turn serializes turns of this session only.
	turn sync.Mutex

	mu   sync.RWMutex
	data Data

	lastActivity atomic.Int64
}

func newSession(id string, now time.Time) *Session {
	s := &Session{ID: id, CreatedAt: now, data: Data{State: StateIdle}}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// LastActivity is read without taking any lock.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Touch marks the session active at t.
func (s *Session) Touch(t time.Time) {
	s.lastActivity.Store(t.UnixNano())
}

// Data returns a copy of the committed state.
func (s *Session) Data() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Do runs fn on a working copy of the session. The copy is committed only when
// fn returns nil and ctx is still live; otherwise the session is untouched.
// Turns on the same session run one at a time.
func (s *Session) Do(ctx context.Context, fn func(d *Data) error) error {
	s.turn.Lock()
	defer s.turn.Unlock()

	work := s.Data()
	prev := work.State
	s.setState(StateResolving)
	work.State = StateResolving

	if err := fn(&work); err != nil {
		s.setState(prev)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.setState(prev)
		return err
	}
	if work.State == StateResolving {
		work.State = StateIdle
		if work.Pending != nil {
			work.State = StateAwaitingClarification
		}
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	s.Touch(time.Now())
	return nil
}

// ExpirePending closes a clarification that has been open for longer than
// timeout. A session in the middle of a turn is skipped; the turn checks
// expiry itself. Last activity is not touched.
func (s *Session) ExpirePending(now time.Time, timeout time.Duration) bool {
	if !s.turn.TryLock() {
		return false
	}
	defer s.turn.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Pending == nil || now.Sub(s.data.Pending.AskedAt) <= timeout {
		return false
	}
	s.data.ClearPending()
	return true
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.data.State = st
	s.mu.Unlock()
}

// View is the read-only form of a session for callers outside the resolver.
type View struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Data
}

// View returns a consistent copy of the session.
func (s *Session) View() View {
	return View{ID: s.ID, CreatedAt: s.CreatedAt, LastActivity: s.LastActivity(), Data: s.Data()}
}
