package staging

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the staging endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{userID}", func(r chi.Router) {
		r.Post("/changes", h.Stage)
		r.Get("/pending", h.Pending)
		r.Post("/apply", h.Apply)
		r.Post("/discard", h.Discard)
		r.Post("/bulk", h.Bulk)
	})
}
