package home

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
)

// Handlers provides HTTP handlers for the home feature.
type Handlers struct {
	console      *console.Console
	sessionStore sessions.Store
	notifier     *notifier.Notifier
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(c *console.Console, sessionStore sessions.Store, notify *notifier.Notifier) *Handlers {
	return &Handlers{
		console:      c,
		sessionStore: sessionStore,
		notifier:     notify,
	}
}

// HomePage renders the console with the session's current state.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	if s == nil {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}

	data := common.BuildAppData(r.Context(), h.console, s)
	if errMsg, info := common.TakeFlash(w, r, h.sessionStore); errMsg != "" || info != "" {
		data.Flash = components.Flash{Error: errMsg, Info: info}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.Page("Console", data).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HomePageUpdates is the long-lived SSE endpoint of the console page. It
// sends nothing initially; each change to the session's database patches
// the database, table and browser panels.
func (h *Handlers) HomePageUpdates(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	if s == nil {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-updates:
			if !concerns(change, s.State()) {
				continue
			}
			if change.Session != s.ID {
				h.console.Resync(ctx, s)
			}
			common.PatchPanels(sse, common.BuildAppData(ctx, h.console, s))
		}
	}
}

// concerns reports whether a change affects what st shows.
func concerns(change console.Change, st console.State) bool {
	return change.Kind == console.ChangeDatabases || change.Database == st.Database
}
