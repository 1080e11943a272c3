package session

import (
	"context"
	"time"

	"intentgate/internal/config"
	"intentgate/internal/logging"
)

// ExpireCallback is called for every session removed by the sweeper.
type ExpireCallback func(id string)

// Sweeper periodically removes idle sessions from a Store and, when given a
// clarification timeout, closes clarifications nobody answered.
type Sweeper struct {
	store    *Store
	interval time.Duration
	onExpire ExpireCallback

	clarifyTimeout time.Duration
	onAbandon      ExpireCallback
}

// NewSweeper creates a sweeper. onExpire may be nil.
func NewSweeper(store *Store, interval time.Duration, onExpire ExpireCallback) *Sweeper {
	if interval <= 0 {
		interval = config.SweepInterval
	}
	return &Sweeper{store: store, interval: interval, onExpire: onExpire}
}

// WithClarificationTimeout makes every pass close clarifications open for
// longer than timeout. onAbandon is called per session and may be nil.
func (w *Sweeper) WithClarificationTimeout(timeout time.Duration, onAbandon ExpireCallback) *Sweeper {
	w.clarifyTimeout = timeout
	w.onAbandon = onAbandon
	return w
}

// Run sweeps on every tick until ctx is done. It always returns nil so it can
// sit in an errgroup next to the server.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	log := logging.Get(logging.CategorySession)
	log.Info("sweeper started: interval=%v ttl=%v", w.interval, w.store.TTL())

	for {
		select {
		case <-ticker.C:
			w.SweepOnce(time.Now())
		case <-ctx.Done():
			log.Info("sweeper shutting down: %v", ctx.Err())
			return nil
		}
	}
}

// SweepOnce runs a single pass and returns how many sessions expired.
func (w *Sweeper) SweepOnce(now time.Time) int {
	log := logging.Get(logging.CategorySession)
	if w.clarifyTimeout > 0 {
		if abandoned := w.store.ExpirePending(now, w.clarifyTimeout); len(abandoned) > 0 {
			log.Info("closed %d unanswered clarifications", len(abandoned))
			if w.onAbandon != nil {
				for _, id := range abandoned {
					w.onAbandon(id)
				}
			}
		}
	}

	expired := w.store.Sweep(now)
	if len(expired) == 0 {
		return 0
	}
	log.Info("expired %d idle sessions", len(expired))
	if w.onExpire != nil {
		for _, id := range expired {
			w.onExpire(id)
		}
	}
	return len(expired)
}
