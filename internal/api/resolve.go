package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"intentgate/internal/logging"
)

type resolveRequest struct {
	Utterance string `json:"utterance"`
	SessionID string `json:"session_id,omitempty"`
}

// Resolve runs one turn. The body is {"utterance": "...", "session_id": "..."};
// an omitted session id starts a new session whose id is in the result.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		Error(w, http.StatusBadRequest, "utterance is required")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req.Utterance, req.SessionID)
	if err != nil {
		// Only an ended request context gets here; the session is untouched.
		logging.Get(logging.CategoryAPI).Info("resolve abandoned: %v", err)
		Error(w, http.StatusServiceUnavailable, "turn abandoned")
		return
	}
	JSON(w, http.StatusOK, res)
}

// GetSession returns a session's state and history.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolver.Sessions().Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess.View())
}

// DeleteSession discards a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.resolver.Sessions().Delete(chi.URLParam(r, "id")) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
