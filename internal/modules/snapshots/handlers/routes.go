package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Post("/capture", h.HandleCapture)
		r.Get("/latest", h.HandleLatest)
		r.Get("/accounts", h.HandleAccounts)
		r.Get("/accounts/{accountID}", h.HandleAccountHistory)
	})
}
