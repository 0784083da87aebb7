// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	databaseFeature "github.com/leapstack-labs/dbbrowser/internal/ui/features/database"
	homeFeature "github.com/leapstack-labs/dbbrowser/internal/ui/features/home"
	queryFeature "github.com/leapstack-labs/dbbrowser/internal/ui/features/query"
	tablesFeature "github.com/leapstack-labs/dbbrowser/internal/ui/features/tables"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
	"github.com/leapstack-labs/dbbrowser/internal/ui/resources"
)

// Config holds what the routes need.
type Config struct {
	Console      *console.Console
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
	// MaxDisplayRows caps the rows rendered per query result set.
	MaxDisplayRows int
	IsDev          bool
	Logger         *slog.Logger
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, cfg Config) error {
	// Hot reload endpoint for dev mode
	if cfg.IsDev {
		setupReload(router)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	var err error
	router.Group(func(r chi.Router) {
		r.Use(common.Sessions(cfg.SessionStore, cfg.Console.Sessions(), cfg.Logger))

		if err = homeFeature.SetupRoutes(r, cfg.Console, cfg.SessionStore, cfg.Notifier); err != nil {
			return
		}
		if err = databaseFeature.SetupRoutes(r, cfg.Console, cfg.SessionStore); err != nil {
			return
		}
		if err = tablesFeature.SetupRoutes(r, cfg.Console, cfg.SessionStore); err != nil {
			return
		}
		err = queryFeature.SetupRoutes(r, cfg.Console, cfg.SessionStore, cfg.MaxDisplayRows)
	})
	return err
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
