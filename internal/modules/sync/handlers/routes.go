package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all sync routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sync-positions", h.HandleSyncPositions)
}
