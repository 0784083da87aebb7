// Package query provides the SQL editor of the console: running scripts
// and loading or saving the script buffer.
package query

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

// SetupRoutes registers the query feature routes.
func SetupRoutes(router chi.Router, c *console.Console, sessionStore sessions.Store, maxRows int) error {
	handlers := NewHandlers(c, sessionStore, maxRows)

	router.Get("/query/script", handlers.DownloadScript)
	router.Post("/query/script", handlers.UploadScript)

	router.Route("/api/query", func(r chi.Router) {
		r.Post("/run", handlers.RunSSE)
	})

	return nil
}
