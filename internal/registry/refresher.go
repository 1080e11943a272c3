package registry

import (
	"context"
	"fmt"
	"time"

	"intentgate/internal/logging"

	rcron "github.com/robfig/cron/v3"
)

// Refresher pulls the registry on a cron schedule.
type Refresher struct {
	reg     *Registry
	cron    *rcron.Cron
	timeout time.Duration
}

// NewRefresher schedules reg.Refresh on spec ("@every 5m", "*/10 * * * *").
func NewRefresher(reg *Registry, spec string, timeout time.Duration) (*Refresher, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Refresher{
		reg:     reg,
		cron:    rcron.New(),
		timeout: timeout,
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	// Failures are logged by the registry and the last good snapshot stays live.
	_, _ = r.reg.Refresh(ctx)
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running refresh to finish.
func (r *Refresher) Run(ctx context.Context) error {
	r.cron.Start()
	logging.Get(logging.CategoryRegistry).Info("registry refresher started (%d entries)", len(r.cron.Entries()))
	<-ctx.Done()
	<-r.cron.Stop().Done()
	logging.Get(logging.CategoryRegistry).Info("registry refresher stopped")
	return nil
}

// Next returns the next scheduled refresh time.
func (r *Refresher) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
