package query

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
)

// DefaultMaxRows caps the rows rendered per result set.
const DefaultMaxRows = 1000

// QuerySignals represents the signals sent from the frontend.
type QuerySignals struct {
	SQL string `json:"sql"`
}

// Handlers provides HTTP handlers for the query feature.
type Handlers struct {
	console      *console.Console
	sessionStore sessions.Store
	maxRows      int
}

// NewHandlers creates a new Handlers instance. maxRows below one selects
// DefaultMaxRows.
func NewHandlers(c *console.Console, sessionStore sessions.Store, maxRows int) *Handlers {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	return &Handlers{
		console:      c,
		sessionStore: sessionStore,
		maxRows:      maxRows,
	}
}

// RunSSE executes the sql signal as one transaction and renders every
// result set. The open page is re-read since the script may have changed it.
func (h *Handlers) RunSSE(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals QuerySignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		h.patchResults(sse, &components.QueryView{Error: "Failed to read signals: " + err.Error()})
		return
	}

	sse := datastar.NewSSE(w, r)
	s := common.SessionFrom(r.Context())

	result, err := h.console.RunSQL(r.Context(), s, signals.SQL)
	if err != nil {
		h.patchResults(sse, &components.QueryView{Error: common.ErrorMessage(err)})
		return
	}

	h.patchResults(sse, &components.QueryView{
		Results: result.Results,
		Elapsed: result.Elapsed,
		MaxRows: h.maxRows,
	})
	common.PatchPanels(sse, common.BuildAppData(r.Context(), h.console, s))
}

// UploadScript replaces the script buffer with an uploaded file without
// running it.
func (h *Handlers) UploadScript(w http.ResponseWriter, r *http.Request) {
	name, data, err := common.ReadUpload(w, r)
	if err == nil {
		err = h.console.LoadScript(common.SessionFrom(r.Context()), bytes.NewReader(data))
	}
	info := ""
	if err == nil {
		info = fmt.Sprintf("Loaded %s into the editor", name)
	}
	common.AddFlash(w, r, h.sessionStore, err, info)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DownloadScript sends the script buffer as a .sql file.
func (h *Handlers) DownloadScript(w http.ResponseWriter, r *http.Request) {
	common.WriteDownload(w, h.console.Script(common.SessionFrom(r.Context())))
}

func (h *Handlers) patchResults(sse *datastar.ServerSentEventGenerator, view *components.QueryView) {
	if err := sse.PatchElementTempl(components.Results(view)); err != nil {
		_ = sse.ConsoleError(err)
	}
}
