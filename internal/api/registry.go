package api

import (
	"net/http"

	"intentgate/internal/logging"
	"intentgate/internal/registry"
)

type registryResponse struct {
	Status  registry.Status                `json:"status"`
	Entries map[registry.Category][]string `json:"entries"`
}

// GetRegistry returns the whitelist currently in service.
func (h *Handler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot()
	out := registryResponse{
		Status:  h.registry.Status(),
		Entries: make(map[registry.Category][]string),
	}
	for _, cat := range registry.Categories() {
		out.Entries[cat] = snap.Names(cat)
	}
	JSON(w, http.StatusOK, out)
}

// RefreshRegistry reloads the whitelist now. A failed reload keeps the old
// snapshot and answers 502 with the registry status.
func (h *Handler) RefreshRegistry(w http.ResponseWriter, r *http.Request) {
	if _, err := h.registry.Refresh(r.Context()); err != nil {
		logging.Get(logging.CategoryAPI).Warn("manual registry refresh failed: %v", err)
		JSON(w, http.StatusBadGateway, h.registry.Status())
		return
	}
	JSON(w, http.StatusOK, h.registry.Status())
}
