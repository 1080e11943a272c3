package perception

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"intentgate/internal/registry"
	"intentgate/internal/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeLLM returns a canned response after an optional delay.
type fakeLLM struct {
	resp  string
	err   error
	delay time.Duration

	calls atomic.Int32
	mu    sync.Mutex
	last  string
}

func (f *fakeLLM) Model() string { return "fake" }

func (f *fakeLLM) CompleteWithSchema(ctx context.Context, system, user string, schema map[string]interface{}) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = user
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.resp, f.err
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// countingTier records how often it is attempted.
type countingTier struct {
	n      types.Tier
	result types.Intent
	err    error
	calls  atomic.Int32
}

func (c *countingTier) Number() types.Tier { return c.n }
func (c *countingTier) Name() string       { return "counting" }

func (c *countingTier) Attempt(ctx context.Context, req Request) (types.Intent, error) {
	c.calls.Add(1)
	return c.result.Clone(), c.err
}

func sampleSnapshot(t *testing.T) *registry.Snapshot {
	t.Helper()
	s, err := registry.NewSnapshot(registry.SampleCatalog(), 1, "test")
	require.NoError(t, err)
	return s
}
