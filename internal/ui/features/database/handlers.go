package database

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
)

// Handlers provides HTTP handlers for the database feature.
type Handlers struct {
	console      *console.Console
	sessionStore sessions.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(c *console.Console, sessionStore sessions.Store) *Handlers {
	return &Handlers{
		console:      c,
		sessionStore: sessionStore,
	}
}

// NewDatabaseSSE creates an empty database named by the dbName signal.
func (h *Handlers) NewDatabaseSSE(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals newDatabaseSignals
	readErr := datastar.ReadSignals(r, &signals)

	sse := datastar.NewSSE(w, r)
	if readErr != nil {
		common.PatchError(sse, fmt.Errorf("read signals: %w", readErr))
		return
	}

	s := common.SessionFrom(r.Context())
	if err := h.console.NewDatabase(r.Context(), s, signals.DBName); err != nil {
		common.PatchError(sse, err)
		return
	}

	data := common.BuildAppData(r.Context(), h.console, s)
	common.PatchPanels(sse, data)
	common.PatchFlash(sse, components.Flash{Info: "Created database " + data.State.Database})
	signals = newDatabaseSignals{}
	if err := sse.MarshalAndPatchSignals(signals); err != nil {
		_ = sse.ConsoleError(err)
	}
	common.SyncSignals(sse, data.State)
}

// SelectDatabaseSSE makes the database in the path active.
func (h *Handlers) SelectDatabaseSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	s := common.SessionFrom(r.Context())
	if err := h.console.SelectDatabase(r.Context(), s, chi.URLParam(r, "name")); err != nil {
		common.PatchError(sse, err)
		return
	}

	data := common.BuildAppData(r.Context(), h.console, s)
	common.PatchPanels(sse, data)
	common.PatchFlash(sse, data.Flash)
	common.SyncSignals(sse, data.State)
}

// OpenDatabase registers an uploaded database image under the file's name
// and redirects back to the console.
func (h *Handlers) OpenDatabase(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())

	name, image, err := common.ReadUpload(w, r)
	if err == nil {
		err = h.console.OpenDatabase(r.Context(), s, filepath.Base(name), image)
	}
	info := ""
	if err == nil {
		info = "Opened " + s.State().Database
	}
	common.AddFlash(w, r, h.sessionStore, err, info)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ExportDatabase downloads the active database image.
func (h *Handlers) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	d, err := h.console.ExportDatabase(r.Context(), common.SessionFrom(r.Context()))
	if err != nil {
		http.Error(w, common.ErrorMessage(err), common.StatusCode(err))
		return
	}
	common.WriteDownload(w, d)
}
