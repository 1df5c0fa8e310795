package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/ember/internal/api/respond"
	"github.com/albapepper/ember/internal/baseline"
)

// BaselineResponse is the body of GET /api/v1/users/{identity}/baseline.
// Baseline is null until the window holds enough snapshots.
type BaselineResponse struct {
	Identity string             `json:"identity"`
	Baseline *baseline.Baseline `json:"baseline"`
}

// GetState returns the committed state record for an identity.
// @Summary Get user state
// @Description Returns the stored record: snapshot window, cooldown date, thread state and conversation. Unknown identities return the default record. Supports If-None-Match.
// @Tags users
// @Produce json
// @Param identity path string true "User identity"
// @Success 200 {object} state.UserState
// @Success 304 "Not Modified"
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/v1/users/{identity}/state [get]
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if identity == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_IDENTITY", "identity path parameter is required")
		return
	}

	st, err := h.svc.State(r.Context(), identity)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSONWithETag(w, r, st)
}

// GetBaseline returns the baseline computed from the current window.
// @Summary Get user baseline
// @Description Computes per-metric mean and population standard deviation, run frequency and typical run hour over the stored window.
// @Tags users
// @Produce json
// @Param identity path string true "User identity"
// @Success 200 {object} BaselineResponse
// @Success 304 "Not Modified"
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/v1/users/{identity}/baseline [get]
func (h *Handler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if identity == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_IDENTITY", "identity path parameter is required")
		return
	}

	b, err := h.svc.Baseline(r.Context(), identity)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSONWithETag(w, r, BaselineResponse{Identity: identity, Baseline: b})
}
