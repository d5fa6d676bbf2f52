package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. ws may be
// nil when status streaming is disabled.
func MountRoutes(r chi.Router, h *Handlers, ws http.HandlerFunc) {
	r.Get("/health", h.Health)
	if ws != nil {
		r.Get("/ws", ws)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/servers", h.ListServers)

		r.Route("/servers/{id}", func(r chi.Router) {
			r.Use(ServerContext)
			r.Post("/binary", h.ResolveBinary)
			r.Get("/configuration", h.GetConfiguration)
			r.Post("/labels/completions", h.LabelCompletions)
			r.Post("/labels/symbols", h.LabelSymbols)
		})
	})
}
