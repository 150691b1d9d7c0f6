// Package handlers provides HTTP handlers for position synchronization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clubvest/brokersync/internal/auth"
	"github.com/clubvest/brokersync/internal/brokerage"
	"github.com/clubvest/brokersync/internal/modules/sync"
	"github.com/rs/zerolog"
)

// SyncService runs position synchronization
type SyncService interface {
	SyncAllAccounts(asOfDate string) (*sync.SyncResult, error)
}

// Handler handles sync HTTP requests
type Handler struct {
	service SyncService
	log     zerolog.Logger
}

// NewHandler creates a new sync handler
func NewHandler(service SyncService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "sync").Logger(),
	}
}

// HandleSyncPositions handles POST /api/sync-positions
//
// A missing or unrecoverable brokerage credential maps to 401; any other
// run-level failure maps to 500. A run that completed with per-account
// errors still returns 200 with ok=false and the per-account details.
func (h *Handler) HandleSyncPositions(w http.ResponseWriter, r *http.Request) {
	asOfDate := r.URL.Query().Get("date")

	result, err := h.service.SyncAllAccounts(asOfDate)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoCredential),
			errors.Is(err, auth.ErrRefreshFailed),
			errors.Is(err, brokerage.ErrUnauthorized):
			h.writeError(w, http.StatusUnauthorized, "brokerage authorization required")
		default:
			h.log.Error().Err(err).Msg("Position sync run failed")
			h.writeError(w, http.StatusInternalServerError, "position sync failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
