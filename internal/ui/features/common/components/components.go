// Package components renders the console's HTML. Templates live in the
// .templ files next to this one; handlers stream them with datastar's
// PatchElementTempl or render whole pages.
package components

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// Element ids patched by SSE responses.
const (
	AppID       = "app"
	FlashID     = "flash"
	DatabasesID = "databases"
	TablesID    = "tables"
	BrowserID   = "browser"
	QueryID     = "query"
)

// pageSizes are offered in the page size selector when they fit the limit.
var pageSizes = []int{10, 20, 50, 100, 500}

// AppData is everything the console view renders for one session.
type AppData struct {
	State       console.State
	Mode        string
	Databases   []console.DatabaseInfo
	Tables      []browser.Table
	MaxPageSize int
	Draft       *console.RowDraft
	Query       *QueryView
	Flash       Flash
}

// QueryView holds the outcome of the last SQL run.
type QueryView struct {
	Results []gateway.ResultSet
	Elapsed time.Duration
	// MaxRows caps the rows rendered per result set. Zero means no cap.
	MaxRows int
	Error   string
}

// shown returns the rows of rs that fit under MaxRows.
func (q *QueryView) shown(rs gateway.ResultSet) [][]any {
	if q.MaxRows > 0 && len(rs.Rows) > q.MaxRows {
		return rs.Rows[:q.MaxRows]
	}
	return rs.Rows
}

// Flash is a one-shot message shown above the console.
type Flash struct {
	Error string
	Info  string
}

// Signals are the client-side values bound to inputs.
type Signals struct {
	DBName     string `json:"dbName"`
	TableName  string `json:"tableName"`
	ColumnDefs string `json:"columnDefs"`
	Filter     string `json:"filter"`
	PageSize   int    `json:"pageSize"`
	SQL        string `json:"sql"`
}

// InitialSignals returns the signal values matching a session's state.
func InitialSignals(st console.State) Signals {
	return Signals{
		Filter:   st.Filter,
		PageSize: st.PageSize,
		SQL:      st.Script,
	}
}

func signalsJSON(st console.State) string {
	b, _ := json.Marshal(InitialSignals(st))
	return string(b)
}

func post(path string) string {
	return "@post('" + path + "')"
}

func selectDatabase(name string) string {
	return post("/api/databases/" + url.PathEscape(name) + "/select")
}

func openTable(name string) string {
	return post("/api/tables/" + url.PathEscape(name) + "/open")
}

func dropTable(name string) string {
	return "/tables/" + url.PathEscape(name) + "/drop"
}

func pageSizeOptions(limit int) []int {
	var sizes []int
	for _, n := range pageSizes {
		if n <= limit {
			sizes = append(sizes, n)
		}
	}
	return sizes
}

func rowAction(index int, action string) string {
	return "/api/rows/" + strconv.Itoa(index) + "/" + action
}

func fieldName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}
