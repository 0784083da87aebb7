package tables

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

// SetupRoutes registers the tables feature routes.
func SetupRoutes(router chi.Router, c *console.Console, sessionStore sessions.Store) error {
	handlers := NewHandlers(c, sessionStore)

	router.Post("/tables/{name}/drop", handlers.DropTable)
	router.Post("/tables/import", handlers.ImportCSV)
	router.Get("/tables/export", handlers.ExportCSV)

	router.Route("/api/tables", func(r chi.Router) {
		r.Post("/create", handlers.CreateTableSSE)
		r.Post("/{name}/open", handlers.OpenTableSSE)
		r.Post("/filter", handlers.FilterSSE)
		r.Post("/page-size", handlers.PageSizeSSE)
		r.Post("/next", handlers.NextPageSSE)
		r.Post("/prev", handlers.PrevPageSSE)
		r.Post("/refresh", handlers.RefreshSSE)
	})

	router.Route("/api/rows/{idx}", func(r chi.Router) {
		r.Post("/edit", handlers.EditRowSSE)
		r.Post("/save", handlers.SaveRowSSE)
		r.Post("/delete", handlers.DeleteRowSSE)
	})

	return nil
}
