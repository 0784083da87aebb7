// Package home serves the console page and its live update stream.
package home

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
)

// SetupRoutes configures routes for the home feature.
func SetupRoutes(
	router chi.Router,
	c *console.Console,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
) error {
	handlers := NewHandlers(c, sessionStore, notify)

	router.Get("/", handlers.HomePage)
	router.Get("/updates", handlers.HomePageUpdates)

	return nil
}
