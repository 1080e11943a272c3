package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentgate/internal/config"
	"intentgate/internal/registry"
	"intentgate/internal/resolver"
	"intentgate/internal/telemetry"
	"intentgate/internal/types"
	"intentgate/internal/usage"
)

type fixedStats struct{ written, dropped int64 }

func (f fixedStats) Stats() (int64, int64) { return f.written, f.dropped }

type fixture struct {
	handler http.Handler
	source  *registry.StaticSource
	reg     *registry.Registry
	metrics *telemetry.MetricsSink
}

func newFixture(t *testing.T, refresh bool) *fixture {
	t.Helper()
	src := registry.NewStaticSource(registry.SampleCatalog())
	reg := registry.New(src)
	if refresh {
		_, err := reg.Refresh(context.Background())
		require.NoError(t, err)
	}
	tracker, err := usage.NewTracker("")
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	sink := telemetry.NewMetricsSink(promReg)

	cfg := config.DefaultConfig()
	res := resolver.NewFromConfig(cfg, reg, nil, tracker, nil)
	h := NewHandler(Options{
		Resolver:  res,
		Registry:  reg,
		Usage:     tracker,
		Telemetry: fixedStats{written: 3, dropped: 1},
		Gatherer:  promReg,
	})
	return &fixture{handler: h.Router(), source: src, reg: reg, metrics: sink}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "bar", decode[map[string]string](t, w)["foo"])
}

func TestResolveEndpoint(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/v1/resolve", `{"utterance":"top 5"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		SessionID  string          `json:"session_id"`
		Status     types.Status    `json:"status"`
		SourceTier types.Tier      `json:"source_tier"`
		Command    json.RawMessage `json:"command"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, types.StatusValid, got.Status)
	assert.Equal(t, types.TierFastMatch, got.SourceTier)
	assert.JSONEq(t, `{"limit":5}`, string(got.Command))
	require.NotEmpty(t, got.SessionID)

	w = f.do(t, http.MethodGet, "/v1/sessions/"+got.SessionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string]interface{}](t, w)
	assert.Equal(t, got.SessionID, view["id"])
	assert.Equal(t, "idle", view["state"])
	assert.Len(t, view["history"], 1)
}

func TestResolveClarificationOverHTTP(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/v1/resolve", `{"utterance":"compressor status","session_id":"web-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		Status     types.Status `json:"status"`
		Prompt     string       `json:"prompt"`
		Candidates []string     `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&first))
	assert.Equal(t, types.StatusNeedsClarification, first.Status)
	assert.NotEmpty(t, first.Prompt)
	assert.Contains(t, first.Candidates, "Compressor-EU-1")

	w = f.do(t, http.MethodPost, "/v1/resolve", `{"utterance":"Compressor-EU-1","session_id":"web-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		Status  types.Status      `json:"status"`
		Command types.StatusQuery `json:"command"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
	assert.Equal(t, types.StatusValid, second.Status)
	assert.Equal(t, "Compressor-EU-1", second.Command.Machine)
}

func TestResolveBadRequests(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `utterance=top 5`, http.StatusBadRequest},
		{"empty utterance", `{"utterance":"   "}`, http.StatusBadRequest},
		{"unknown field", `{"utterance":"top 5","user":"x"}`, http.StatusBadRequest},
		{"too large", `{"utterance":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/resolve", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestResolveAbandonedRequest(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(`{"utterance":"top 5","session_id":"gone"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/sessions/nope", "").Code)

	f.do(t, http.MethodPost, "/v1/resolve", `{"utterance":"top 5","session_id":"s1"}`)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/sessions/s1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/s1", "").Code)
}

func TestRegistryEndpoints(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/v1/registry", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[registryResponse](t, w)
	assert.Equal(t, uint64(1), body.Status.Version)
	assert.Contains(t, body.Entries[registry.CategoryMachines], "Pump-2")

	f.source.Fail(errors.New("db down"))
	w = f.do(t, http.MethodPost, "/v1/registry/refresh", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	st := decode[registry.Status](t, w)
	assert.Contains(t, st.LastError, "db down")
	assert.Equal(t, uint64(1), st.Version, "last good snapshot stays in service")

	cat := registry.SampleCatalog()
	cat.Machines = append(cat.Machines, registry.Member{Name: "Dryer-6"})
	f.source.Set(cat)
	w = f.do(t, http.MethodPost, "/v1/registry/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, decode[registry.Status](t, w).Machines)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/healthz", "").Code)

	_, err := f.reg.Refresh(context.Background())
	require.NoError(t, err)
	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]interface{}](t, w)["status"])
}

func TestStatsAndMetrics(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodPost, "/v1/resolve", `{"utterance":"top 5"}`)
	require.NoError(t, f.metrics.Write(context.Background(), telemetry.Event{
		SourceTier: types.TierFastMatch,
		Outcome:    types.StatusValid,
		Confidence: 1,
		Latency:    time.Millisecond,
	}))

	w := f.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[statsResponse](t, w)
	assert.Equal(t, 1, stats.Sessions)
	require.NotNil(t, stats.Usage)
	assert.Equal(t, int64(1), stats.Usage.Turns)
	require.NotNil(t, stats.Telemetry)
	assert.Equal(t, int64(1), stats.Telemetry.Dropped)

	w = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "intentgate_resolver_turns_total")
}
