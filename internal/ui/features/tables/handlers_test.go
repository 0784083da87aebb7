package tables

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/ui/features"
)

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t).WithDemo()
	return NewHandlers(fixture.Console, fixture.SessionStore), fixture
}

func sse(t *testing.T, handler http.HandlerFunc, req *http.Request) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCreateTableSSE(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantBody  string
		wantTable bool
	}{
		{"creates", `{"tableName":"orders","columnDefs":"id INTEGER PRIMARY KEY, total REAL"}`, "Created table orders", true},
		{"missing columns", `{"tableName":"orders","columnDefs":""}`, "input is empty", false},
		{"bad definition", `{"tableName":"orders","columnDefs":"id INTEGER PRIMARY KEY,"}`, "flash-error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := setupTestHandlers(t)
			body := sse(t, h.CreateTableSSE, f.Request(http.MethodPost, "/api/tables/create", tt.body))
			assert.Contains(t, body, tt.wantBody)

			tables, err := f.Console.ListTables(context.Background(), f.Session)
			require.NoError(t, err)
			names := make([]string, len(tables))
			for i, tbl := range tables {
				names[i] = tbl.Name
			}
			if tt.wantTable {
				assert.Contains(t, names, "orders")
				assert.Contains(t, body, "/api/tables/orders/open")
			} else {
				assert.NotContains(t, names, "orders")
			}
		})
	}
}

func TestOpenAndPaginate(t *testing.T) {
	h, f := setupTestHandlers(t)
	ctx := context.Background()
	_, err := f.Console.RunSQL(ctx, f.Session,
		"WITH RECURSIVE s(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM s WHERE i < 23) INSERT INTO t (name) SELECT 'n' || i FROM s")
	require.NoError(t, err)

	req := features.RequestWithPathParam(f.Request(http.MethodPost, "/api/tables/t/open", ""), "name", "t")
	body := sse(t, h.OpenTableSSE, req)
	assert.Contains(t, body, "Page 1 of 3")
	assert.Contains(t, body, "(25 rows)")

	body = sse(t, h.NextPageSSE, f.Request(http.MethodPost, "/api/tables/next", ""))
	assert.Contains(t, body, "Page 2 of 3")

	body = sse(t, h.PrevPageSSE, f.Request(http.MethodPost, "/api/tables/prev", ""))
	assert.Contains(t, body, "Page 1 of 3")

	body = sse(t, h.PageSizeSSE, f.Request(http.MethodPost, "/api/tables/page-size", `{"pageSize":"50"}`))
	assert.Contains(t, body, "Page 1 of 1")
	assert.Equal(t, 50, f.Session.State().PageSize)

	body = sse(t, h.PageSizeSSE, f.Request(http.MethodPost, "/api/tables/page-size", `{"pageSize":0}`))
	assert.Contains(t, body, "flash-error")
	assert.Equal(t, 50, f.Session.State().PageSize)
}

func TestFilterSSE(t *testing.T) {
	tests := []struct {
		name       string
		filter     string
		wantTotal  int64
		wantFilter string
		wantError  bool
	}{
		{"matches one row", `name = 'b'`, 1, `name = 'b'`, false},
		{"clears", ``, 2, ``, false},
		{"unknown column keeps state", `nope = 1`, 2, ``, true},
		{"injection is rejected", `1; DROP TABLE t`, 2, ``, true},
	}

	h, f := setupTestHandlers(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := sse(t, h.FilterSSE, f.Request(http.MethodPost, "/api/tables/filter", `{"filter":`+quote(tt.filter)+`}`))
			if tt.wantError {
				assert.Contains(t, body, "flash-error")
			}
			st := f.Session.State()
			assert.Equal(t, tt.wantTotal, st.Page.Total)
			assert.Equal(t, tt.wantFilter, st.Filter)
		})
	}
}

func TestEditSaveDeleteRow(t *testing.T) {
	h, f := setupTestHandlers(t)

	req := features.RequestWithPathParam(f.Request(http.MethodPost, "/api/rows/1/edit", ""), "idx", "1")
	body := sse(t, h.EditRowSSE, req)
	assert.Contains(t, body, `id="row-editor"`)
	assert.Contains(t, body, `name="v1" value="b"`)

	form := url.Values{"v0": {"2"}, "v1": {"bee"}}
	req = f.Request(http.MethodPost, "/api/rows/1/save", form.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = features.RequestWithPathParam(req, "idx", "1")
	body = sse(t, h.SaveRowSSE, req)
	assert.Contains(t, body, "Row saved")
	assert.Equal(t, []any{int64(2), "bee"}, f.Session.State().Page.Rows[1])

	form = url.Values{"v0": {"1"}, "v1": {""}, "n1": {"1"}}
	req = f.Request(http.MethodPost, "/api/rows/0/save", form.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = features.RequestWithPathParam(req, "idx", "0")
	sse(t, h.SaveRowSSE, req)
	assert.Equal(t, []any{int64(1), nil}, f.Session.State().Page.Rows[0])

	req = features.RequestWithPathParam(f.Request(http.MethodPost, "/api/rows/0/delete", ""), "idx", "0")
	body = sse(t, h.DeleteRowSSE, req)
	assert.Contains(t, body, "Row deleted")
	assert.Equal(t, int64(1), f.Session.State().Page.Total)

	req = features.RequestWithPathParam(f.Request(http.MethodPost, "/api/rows/9/delete", ""), "idx", "9")
	body = sse(t, h.DeleteRowSSE, req)
	assert.Contains(t, body, "flash-error")
}

func TestDropTable(t *testing.T) {
	h, f := setupTestHandlers(t)

	req := features.RequestWithPathParam(f.Request(http.MethodPost, "/tables/t/drop", ""), "name", "t")
	rec := httptest.NewRecorder()
	h.DropTable(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "demo.backup.")
	assert.Empty(t, f.Session.State().Table)

	// The backup still holds the dropped table.
	restored := f.Console.Sessions().Create()
	require.NoError(t, f.Console.OpenDatabase(context.Background(), restored, "restored", rec.Body.Bytes()))
	page, err := f.Console.OpenTable(context.Background(), restored, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	rec = httptest.NewRecorder()
	h.DropTable(rec, features.RequestWithPathParam(f.Request(http.MethodPost, "/tables/t/drop", ""), "name", "t"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestCSVImportExport(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	h.ImportCSV(rec, f.Upload("/tables/import", "t.csv", []byte("name,id\nc,3\nd,4\n")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, int64(4), f.Session.State().Page.Total)

	rec = httptest.NewRecorder()
	h.ExportCSV(rec, f.Request(http.MethodGet, "/tables/export", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id,name\n1,a\n2,b\n3,c\n4,d\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "demo-t.csv")

	rec = httptest.NewRecorder()
	h.ImportCSV(rec, f.Upload("/tables/import", "t.csv", []byte("id,missing\n5,x\n")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, int64(4), f.Session.State().Page.Total, "a failed import inserts nothing")
}

func TestExportCSV_NoTable(t *testing.T) {
	f := features.SetupTestFixture(t)
	h := NewHandlers(f.Console, f.SessionStore)

	rec := httptest.NewRecorder()
	h.ExportCSV(rec, f.Request(http.MethodGet, "/tables/export", ""))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    flexInt
		wantErr bool
	}{
		{`20`, 20, false},
		{`"50"`, 50, false},
		{`" 10 "`, 10, false},
		{`"ten"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n flexInt
			err := n.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func quote(s string) string {
	return `"` + s + `"`
}
