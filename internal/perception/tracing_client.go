package perception

import (
	"context"
	"sync/atomic"
	"time"

	"intentgate/internal/logging"
)

// ClientStats are cumulative counters for one model client.
type ClientStats struct {
	Calls        int64         `json:"calls"`
	Failures     int64         `json:"failures"`
	TotalLatency time.Duration `json:"total_latency"`
}

// TracingLLMClient wraps any LLMClient and logs every call.
type TracingLLMClient struct {
	underlying LLMClient

	calls    atomic.Int64
	failures atomic.Int64
	latency  atomic.Int64
}

// NewTracingLLMClient creates a tracing wrapper around an existing client.
func NewTracingLLMClient(underlying LLMClient) *TracingLLMClient {
	return &TracingLLMClient{underlying: underlying}
}

func (tc *TracingLLMClient) Model() string { return tc.underlying.Model() }

func (tc *TracingLLMClient) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	start := time.Now()
	logging.Get(logging.CategoryLLM).Debug("call started: model=%s prompt_len=%d", tc.underlying.Model(), len(userPrompt))

	resp, err := tc.underlying.CompleteWithSchema(ctx, systemPrompt, userPrompt, schema)

	elapsed := time.Since(start)
	tc.calls.Add(1)
	tc.latency.Add(int64(elapsed))
	if err != nil {
		tc.failures.Add(1)
		logging.Get(logging.CategoryLLM).Warn("call failed after %v: model=%s err=%v", elapsed, tc.underlying.Model(), err)
		return "", err
	}
	logging.Get(logging.CategoryLLM).Debug("call completed in %v: model=%s response_len=%d", elapsed, tc.underlying.Model(), len(resp))
	return resp, nil
}

// Stats returns a snapshot of the counters.
func (tc *TracingLLMClient) Stats() ClientStats {
	return ClientStats{
		Calls:        tc.calls.Load(),
		Failures:     tc.failures.Load(),
		TotalLatency: time.Duration(tc.latency.Load()),
	}
}
