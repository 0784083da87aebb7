package database

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

// SetupRoutes registers the database feature routes.
func SetupRoutes(router chi.Router, c *console.Console, sessionStore sessions.Store) error {
	handlers := NewHandlers(c, sessionStore)

	router.Post("/databases/open", handlers.OpenDatabase)
	router.Get("/databases/export", handlers.ExportDatabase)

	router.Route("/api/databases", func(r chi.Router) {
		r.Post("/new", handlers.NewDatabaseSSE)
		r.Post("/{name}/select", handlers.SelectDatabaseSSE)
	})

	return nil
}
