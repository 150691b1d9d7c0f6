// Package handlers provides HTTP handlers for runtime settings.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clubvest/brokersync/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles settings HTTP requests
type Handler struct {
	repo *settings.Repository
	log  zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(repo *settings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "settings").Logger(),
	}
}

// secretKeys are never returned in responses
var secretKeys = map[string]bool{
	settings.KeyBrokerClientSecret: true,
}

// HandleGetAll handles GET /api/settings
// Secret values are replaced with a presence marker.
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read settings")
		h.writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	for key := range all {
		if secretKeys[key] {
			all[key] = "********"
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"settings": all})
}

// HandleSet handles PUT /api/settings/{key}
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "setting key is required")
		return
	}

	var body struct {
		Value       string  `json:"value"`
		Description *string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.Set(key, body.Value, body.Description); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		h.writeError(w, http.StatusInternalServerError, "failed to store setting")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"updated": key})
}

// HandleDelete handles DELETE /api/settings/{key}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "setting key is required")
		return
	}

	if err := h.repo.Delete(key); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to delete setting")
		h.writeError(w, http.StatusInternalServerError, "failed to delete setting")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": key})
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
