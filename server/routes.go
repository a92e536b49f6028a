package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router wires ops endpoints
func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/ping", h.Ping)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Get("/logs/{id}", h.Log)
	r.Get("/history/{chatID}", h.History)
}
