package api

import (
	"net/http"
	"time"

	"intentgate/internal/usage"
)

type telemetryStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
}

type statsResponse struct {
	Uptime    string                 `json:"uptime"`
	Sessions  int                    `json:"sessions"`
	Usage     *usage.AggregatedStats `json:"usage,omitempty"`
	Telemetry *telemetryStats        `json:"telemetry,omitempty"`
}

// Stats returns resolution counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	out := statsResponse{
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Sessions: h.resolver.Sessions().Len(),
	}
	if h.usage != nil {
		s := h.usage.Stats()
		out.Usage = &s
	}
	if h.telemetry != nil {
		written, dropped := h.telemetry.Stats()
		out.Telemetry = &telemetryStats{Written: written, Dropped: dropped}
	}
	JSON(w, http.StatusOK, out)
}

// Health answers 503 until a whitelist has been loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Status()
	body := map[string]interface{}{
		"status":           "ok",
		"registry_version": st.Version,
	}
	if st.Version == 0 {
		body["status"] = "starting"
		JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	JSON(w, http.StatusOK, body)
}
