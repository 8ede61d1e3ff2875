package preorders

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the pre-order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/recompute", h.Recompute)
	r.Put("/{id}/status", h.ChangeStatus)
	r.Put("/{id}/flight", h.AssignFlight)
}
