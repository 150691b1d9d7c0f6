// Package handlers provides HTTP handlers for the brokerage OAuth flow.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clubvest/brokersync/internal/auth"
	"github.com/rs/zerolog"
)

// Handler handles OAuth HTTP requests
type Handler struct {
	manager *auth.Manager
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(manager *auth.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

// HandleLogin handles GET /api/auth/login?context=<name>
// It redirects the browser to the brokerage authorization page.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	contextName := r.URL.Query().Get("context")
	if contextName == "" {
		contextName = "portal"
	}

	authURL, err := h.manager.BeginAuthorization(contextName)
	if err != nil {
		if errors.Is(err, auth.ErrNoRedirectTarget) {
			h.writeError(w, http.StatusInternalServerError, "redirect target not configured")
			return
		}
		h.log.Error().Err(err).Msg("Failed to begin authorization")
		h.writeError(w, http.StatusInternalServerError, "failed to begin authorization")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles GET /api/auth/callback?code=...&state=...
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	cred, err := h.manager.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrStateMismatch):
			h.writeError(w, http.StatusForbidden, "state mismatch")
		case errors.Is(err, auth.ErrExchangeFailed):
			h.log.Error().Err(err).Msg("Code exchange failed")
			h.writeError(w, http.StatusBadGateway, "code exchange failed")
		default:
			h.log.Error().Err(err).Msg("Authorization callback failed")
			h.writeError(w, http.StatusInternalServerError, "authorization failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authorized": true,
		"expires_at": cred.ExpiresAt.Unix(),
	})
}

// HandleStatus handles GET /api/auth/status
// Reports whether a usable credential exists without exposing token material.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cred, err := h.manager.GetValidCredential(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) || errors.Is(err, auth.ErrRefreshFailed) {
			h.writeJSON(w, http.StatusOK, map[string]interface{}{"authorized": false})
			return
		}
		h.log.Error().Err(err).Msg("Failed to check credential status")
		h.writeError(w, http.StatusInternalServerError, "failed to check credential")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authorized": true,
		"expires_at": cred.ExpiresAt.Unix(),
	})
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
