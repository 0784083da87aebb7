package tables

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common/components"
)

// Handlers provides HTTP handlers for the tables feature.
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

// CreateTableSSE creates a table from the tableName and columnDefs signals.
func (h *Handlers) CreateTableSSE(w http.ResponseWriter, r *http.Request) {
	var signals createSignals
	readErr := datastar.ReadSignals(r, &signals)

	sse := datastar.NewSSE(w, r)
	if readErr != nil {
		common.PatchError(sse, fmt.Errorf("read signals: %w", readErr))
		return
	}

	s := common.SessionFrom(r.Context())
	if err := h.console.CreateTable(r.Context(), s, signals.TableName, signals.ColumnDefs); err != nil {
		common.PatchError(sse, err)
		return
	}

	common.PatchPanels(sse, common.BuildAppData(r.Context(), h.console, s))
	common.PatchInfo(sse, "Created table "+signals.TableName)
	if err := sse.MarshalAndPatchSignals(createSignals{}); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// DropTable drops the table in the path and answers with the backup image
// taken just before. On failure it redirects back with the error.
func (h *Handlers) DropTable(w http.ResponseWriter, r *http.Request) {
	d, err := h.console.DropTable(r.Context(), common.SessionFrom(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		common.AddFlash(w, r, h.sessionStore, err, "")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	common.WriteDownload(w, d)
}

// OpenTableSSE opens the first page of the table in the path.
func (h *Handlers) OpenTableSSE(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		return h.console.OpenTable(r.Context(), s, chi.URLParam(r, "name"))
	})
}

// FilterSSE applies the filter signal to the open table.
func (h *Handlers) FilterSSE(w http.ResponseWriter, r *http.Request) {
	var signals filterSignals
	readErr := datastar.ReadSignals(r, &signals)
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		if readErr != nil {
			return nil, fmt.Errorf("read signals: %w", readErr)
		}
		return h.console.SetFilter(r.Context(), s, signals.Filter)
	})
}

// PageSizeSSE changes the page size from the pageSize signal.
func (h *Handlers) PageSizeSSE(w http.ResponseWriter, r *http.Request) {
	var signals pageSizeSignals
	readErr := datastar.ReadSignals(r, &signals)
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		if readErr != nil {
			return nil, fmt.Errorf("%w: %w", browser.ErrInvalidPageSize, readErr)
		}
		return h.console.ChangePageSize(r.Context(), s, int(signals.PageSize))
	})
}

// NextPageSSE shows the following page.
func (h *Handlers) NextPageSSE(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		return h.console.NextPage(r.Context(), s)
	})
}

// PrevPageSSE shows the preceding page.
func (h *Handlers) PrevPageSSE(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		return h.console.PrevPage(r.Context(), s)
	})
}

// RefreshSSE re-reads the current page. It also closes the row editor.
func (h *Handlers) RefreshSSE(w http.ResponseWriter, r *http.Request) {
	h.pageCommand(w, r, func(s *console.Session) (*browser.Page, error) {
		return h.console.Refresh(r.Context(), s)
	})
}

// EditRowSSE opens the row editor for a row of the current page.
func (h *Handlers) EditRowSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	s := common.SessionFrom(r.Context())

	idx, err := rowIndex(r)
	if err == nil {
		var draft console.RowDraft
		draft, err = h.console.EditRow(r.Context(), s, idx)
		if err == nil {
			data := common.BuildAppData(r.Context(), h.console, s)
			data.Draft = &draft
			patchBrowser(sse, data)
			return
		}
	}
	common.PatchError(sse, err)
}

// SaveRowSSE writes the posted editor form over a row of the current page.
func (h *Handlers) SaveRowSSE(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())

	draft, err := readDraft(r, s.State())
	sse := datastar.NewSSE(w, r)
	if err == nil {
		_, err = h.console.SaveRow(r.Context(), s, draft.Index, draft)
	}
	if err != nil {
		common.PatchError(sse, err)
		return
	}
	patchBrowser(sse, common.BuildAppData(r.Context(), h.console, s))
	common.PatchInfo(sse, "Row saved")
}

// DeleteRowSSE deletes a row of the current page.
func (h *Handlers) DeleteRowSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	s := common.SessionFrom(r.Context())

	idx, err := rowIndex(r)
	if err == nil {
		_, err = h.console.DeleteRow(r.Context(), s, idx)
	}
	if err != nil {
		common.PatchError(sse, err)
		return
	}
	patchBrowser(sse, common.BuildAppData(r.Context(), h.console, s))
	common.PatchInfo(sse, "Row deleted")
}

// ImportCSV appends an uploaded CSV file to the open table.
func (h *Handlers) ImportCSV(w http.ResponseWriter, r *http.Request) {
	_, data, err := common.ReadUpload(w, r)
	n := 0
	if err == nil {
		n, err = h.console.ImportCSV(r.Context(), common.SessionFrom(r.Context()), bytes.NewReader(data))
	}
	info := ""
	if err == nil {
		info = fmt.Sprintf("Imported %d rows", n)
	}
	common.AddFlash(w, r, h.sessionStore, err, info)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ExportCSV downloads the whole open table as CSV.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	d, err := h.console.ExportCSV(r.Context(), common.SessionFrom(r.Context()))
	if err != nil {
		http.Error(w, common.ErrorMessage(err), common.StatusCode(err))
		return
	}
	common.WriteDownload(w, d)
}

// pageCommand runs a command that moves the browser and patches the
// browser panel, the table list and the filter and page size inputs.
func (h *Handlers) pageCommand(w http.ResponseWriter, r *http.Request, run func(s *console.Session) (*browser.Page, error)) {
	sse := datastar.NewSSE(w, r)
	s := common.SessionFrom(r.Context())

	if _, err := run(s); err != nil {
		common.PatchError(sse, err)
		if errors.Is(err, console.ErrNoDatabase) {
			common.PatchPanels(sse, common.BuildAppData(r.Context(), h.console, s))
		}
		return
	}

	data := common.BuildAppData(r.Context(), h.console, s)
	if err := sse.PatchElementTempl(components.Tables(data)); err != nil {
		_ = sse.ConsoleError(err)
	}
	patchBrowser(sse, data)
	common.PatchFlash(sse, data.Flash)
	common.SyncSignals(sse, data.State)
}

func patchBrowser(sse *datastar.ServerSentEventGenerator, data components.AppData) {
	if err := sse.PatchElementTempl(components.Browser(data)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func rowIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", browser.ErrRowIndex, chi.URLParam(r, "idx"))
	}
	return idx, nil
}
