// Package registry holds the entity whitelist the resolver validates against.
//
// The current Snapshot is swapped atomically on refresh; readers never lock.
// A failed refresh keeps the last good snapshot in service.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"intentgate/internal/logging"

	"golang.org/x/sync/singleflight"
)

// Source delivers whitelist catalogs.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Catalog, error)
}

// Status describes the registry's refresh health.
type Status struct {
	Source      string    `json:"source"`
	Version     uint64    `json:"version"`
	LoadedAt    time.Time `json:"loaded_at"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
	Machines    int       `json:"machines"`
	Metrics     int       `json:"metrics"`
	TimeRanges  int       `json:"time_ranges"`
	Sources     int       `json:"energy_sources"`
	Groups      int       `json:"groups"`
}

// Registry owns the live snapshot.
type Registry struct {
	source  Source
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	flight  singleflight.Group

	mu          sync.Mutex
	lastErr     error
	lastAttempt time.Time
}

// New creates a registry serving an empty snapshot until the first refresh.
func New(src Source) *Registry {
	r := &Registry{source: src}
	r.current.Store(Empty())
	return r
}

// Snapshot returns the current snapshot. It is never nil.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Refresh pulls a catalog from the source and swaps it in. Concurrent calls
// share one fetch. On failure the previous snapshot stays live and the error
// is returned and recorded.
func (r *Registry) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := r.flight.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return r.Snapshot(), err
	}
	return v.(*Snapshot), nil
}

func (r *Registry) refresh(ctx context.Context) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryRegistry, "refresh")
	defer timer.Stop()

	cat, err := r.source.Fetch(ctx)
	if err == nil {
		var snap *Snapshot
		snap, err = NewSnapshot(cat, r.version.Add(1), r.source.Name())
		if err == nil {
			r.install(snap)
			return snap, nil
		}
	}

	err = fmt.Errorf("registry refresh from %s: %w", r.source.Name(), err)
	r.record(err)
	logging.Get(logging.CategoryRegistry).Warn("%v (serving version %d)", err, r.Snapshot().Version())
	return nil, err
}

// Install swaps in a catalog directly, bypassing the source.
func (r *Registry) Install(c Catalog) (*Snapshot, error) {
	snap, err := NewSnapshot(c, r.version.Add(1), "direct")
	if err != nil {
		return nil, err
	}
	r.install(snap)
	return snap, nil
}

func (r *Registry) install(snap *Snapshot) {
	r.current.Store(snap)
	r.record(nil)
	logging.Get(logging.CategoryRegistry).Info("installed registry version %d from %s: %d machines, %d metrics, %d energy sources",
		snap.Version(), snap.Source(), snap.Count(CategoryMachines), snap.Count(CategoryMetrics), snap.Count(CategoryEnergySources))
}

func (r *Registry) record(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.lastAttempt = time.Now()
	r.mu.Unlock()
}

// Status reports the live version and the outcome of the last refresh.
func (r *Registry) Status() Status {
	snap := r.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Source:      r.source.Name(),
		Version:     snap.Version(),
		LoadedAt:    snap.LoadedAt(),
		LastAttempt: r.lastAttempt,
		Machines:    snap.Count(CategoryMachines),
		Metrics:     snap.Count(CategoryMetrics),
		TimeRanges:  snap.Count(CategoryTimeRanges),
		Sources:     snap.Count(CategoryEnergySources),
		Groups:      snap.Count(CategoryGroups),
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}
