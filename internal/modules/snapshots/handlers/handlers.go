// Package handlers provides HTTP handlers for balance snapshots.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clubvest/brokersync/internal/auth"
	"github.com/clubvest/brokersync/internal/brokerage"
	"github.com/clubvest/brokersync/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SnapshotService captures and reads balance snapshots
type SnapshotService interface {
	CaptureSnapshots(snapshotDate string) (*snapshots.CaptureResult, error)
	GetLatestSnapshots() ([]snapshots.SnapshotRecord, error)
	GetAccountHistory(accountID int64, limit int) ([]snapshots.SnapshotRecord, error)
	GetAccounts() ([]snapshots.Account, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	service SnapshotService
	log     zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(service SnapshotService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleCapture handles POST /api/snapshots/capture
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	snapshotDate := r.URL.Query().Get("date")

	result, err := h.service.CaptureSnapshots(snapshotDate)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoCredential),
			errors.Is(err, auth.ErrRefreshFailed),
			errors.Is(err, brokerage.ErrUnauthorized):
			h.writeError(w, http.StatusUnauthorized, "brokerage authorization required")
		default:
			h.log.Error().Err(err).Msg("Snapshot capture failed")
			h.writeError(w, http.StatusInternalServerError, "snapshot capture failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleLatest handles GET /api/snapshots/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.service.GetLatestSnapshots()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read latest snapshots")
		h.writeError(w, http.StatusInternalServerError, "failed to read snapshots")
		return
	}
	if latest == nil {
		latest = []snapshots.SnapshotRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": latest})
}

// HandleAccountHistory handles GET /api/snapshots/accounts/{accountID}
func (h *Handler) HandleAccountHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	history, err := h.service.GetAccountHistory(accountID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read snapshot history")
		h.writeError(w, http.StatusInternalServerError, "failed to read snapshots")
		return
	}
	if history == nil {
		history = []snapshots.SnapshotRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": history})
}

// HandleAccounts handles GET /api/snapshots/accounts
func (h *Handler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.GetAccounts()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read accounts")
		h.writeError(w, http.StatusInternalServerError, "failed to read accounts")
		return
	}
	if accounts == nil {
		accounts = []snapshots.Account{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
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
