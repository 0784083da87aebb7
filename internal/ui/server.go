// Package ui serves the browser console over HTTP.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
	"github.com/leapstack-labs/dbbrowser/internal/ui/router"
)

const (
	sweepInterval  = time.Minute
	watchDebounce  = 100 * time.Millisecond
	shutdownPeriod = 5 * time.Second
)

// Server is the console UI server.
type Server struct {
	console        *console.Console
	registry       *registry.Registry
	sessionStore   *sessions.CookieStore
	notifier       *notifier.Notifier
	port           int
	preloadDir     string
	watch          bool
	maxDisplayRows int
	isDev          bool
	logger         *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Console *console.Console
	// Notifier receives the console's changes; it must be the one wired
	// into the console's OnChange hook.
	Notifier       *notifier.Notifier
	Port           int
	SessionSecret  string
	PreloadDir     string
	Watch          bool
	MaxDisplayRows int
	IsDev          bool
	// SecureCookies sets the Secure cookie attribute. The server itself
	// only speaks plain HTTP, where browsers drop Secure cookies.
	SecureCookies bool
	Logger        *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Secure = cfg.SecureCookies

	notify := cfg.Notifier
	if notify == nil {
		notify = notifier.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		console:        cfg.Console,
		registry:       cfg.Console.Registry(),
		sessionStore:   sessionStore,
		notifier:       notify,
		port:           cfg.Port,
		preloadDir:     cfg.PreloadDir,
		watch:          cfg.Watch,
		maxDisplayRows: cfg.MaxDisplayRows,
		isDev:          cfg.IsDev,
		logger:         logger,
	}
}

// Handler builds the HTTP handler with middleware and all routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	err := router.SetupRoutes(r, router.Config{
		Console:        s.console,
		SessionStore:   s.sessionStore,
		Notifier:       s.notifier,
		MaxDisplayRows: s.maxDisplayRows,
		IsDev:          s.isDev,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
// Database files in the preload directory are registered first.
func (s *Server) Serve(ctx context.Context) error {
	if s.preloadDir != "" {
		if err := s.registry.PreloadDir(ctx, s.preloadDir); err != nil {
			return err
		}
		s.logger.Info("preloaded databases", "dir", s.preloadDir, "count", s.registry.Count())
	}

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port), "mode", s.registry.Mode())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.preloadDir != "" {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		s.sweepSessions(egctx)
		return nil
	})

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// sweepSessions drops idle console sessions until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.console.Sessions().Sweep(); n > 0 {
				s.logger.Debug("expired console sessions", "count", n)
			}
		}
	}
}

// watchFiles registers database files that appear in the preload directory.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.preloadDir); err != nil {
		s.logger.Error("failed to watch preload directory", "dir", s.preloadDir, "error", err)
		return nil
	}

	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !registry.IsImageFile(event.Name) {
				continue
			}

			// Writers emit several events per file; load once they settle.
			path := event.Name
			if t, ok := pending[path]; ok {
				t.Stop()
			}
			pending[path] = time.AfterFunc(watchDebounce, func() {
				s.loadWatched(ctx, path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// loadWatched registers a database file found by the watcher and notifies
// connected consoles.
func (s *Server) loadWatched(ctx context.Context, path string) {
	h, err := s.registry.LoadFile(ctx, path)
	if err != nil {
		if errors.Is(err, registry.ErrExists) {
			s.logger.Debug("database already registered", "file", filepath.Base(path))
			return
		}
		s.logger.Error("failed to load database file", "file", path, "error", err)
		return
	}
	s.logger.Info("database file loaded", "name", h.Name())
	s.notifier.Broadcast()
}
