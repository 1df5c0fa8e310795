// Package handler provides HTTP handlers for all API endpoints.
// Handlers decode the request, call the check-in service and map its typed
// errors onto the shared error shape; no domain logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/ember/internal/api/respond"
	"github.com/albapepper/ember/internal/baseline"
	"github.com/albapepper/ember/internal/checkin"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/state"
)

// maxBodyBytes caps request bodies. A snapshot is a few hundred bytes and a
// Telegram update a few kilobytes.
const maxBodyBytes = 64 << 10

// Store is the slice of the state repository the health endpoints need.
type Store interface {
	Ping(ctx context.Context) error
	Stats() map[string]interface{}
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	svc    *checkin.Service
	store  Store
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(svc *checkin.Service, store Store, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, store: store, cfg: cfg, logger: logger}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":      "Ember",
		"version":   "1.0.0",
		"status":    "running",
		"docs":      "/docs",
		"transport": h.cfg.Transport,
		"store":     h.cfg.StoreDriver,
		"timezone":  h.svc.Location().String(),
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore verifies state store connectivity and reports cache stats.
// @Summary State store health check
// @Description Pings the state backend and returns repository cache statistics.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Store health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     "disconnected",
			"driver":    h.cfg.StoreDriver,
			"error":     "State store connectivity check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     "connected",
		"driver":    h.cfg.StoreDriver,
		"cache":     h.store.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// decode reads a JSON body into v, writing a 400 and returning false on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err.Error())
		return false
	}
	return true
}

// writeJSONWithETag marshals v and serves it with ETag revalidation.
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode response")
		return
	}
	etag := respond.ComputeETag(data)
	if respond.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag)
}

// writeServiceError maps check-in service errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *baseline.ValidationError
	var pe *state.PersistenceError
	switch {
	case errors.As(err, &ve):
		respond.WriteErrorDetail(w, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error(), ve.Field)
	case errors.As(err, &pe):
		respond.WriteError(w, http.StatusServiceUnavailable, "PERSISTENCE_ERROR",
			fmt.Sprintf("State for this user could not be %s, try again", persistenceVerb(pe.Op)))
	default:
		h.logger.Error("Unhandled service error", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func persistenceVerb(op string) string {
	if op == "load" {
		return "loaded"
	}
	return "saved"
}
