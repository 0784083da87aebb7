package query

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/ui/features"
)

func setupTestHandlers(t *testing.T, maxRows int) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t).WithDemo()
	return NewHandlers(fixture.Console, fixture.SessionStore, maxRows), fixture
}

func TestRunSSE(t *testing.T) {
	tests := []struct {
		name        string
		sql         string
		wantBody    []string
		notWantBody []string
	}{
		{
			name:     "select renders rows",
			sql:      "SELECT id, name FROM t ORDER BY id",
			wantBody: []string{`id="results"`, "<th>name</th>", `<td class="text">b</td>`, "Executed in"},
		},
		{
			name:     "several result sets",
			sql:      "SELECT 1 AS one; SELECT 'x' AS two",
			wantBody: []string{"<th>one</th>", "<th>two</th>"},
		},
		{
			name:     "statement without rows",
			sql:      "UPDATE t SET name = 'z' WHERE id = 2",
			wantBody: []string{"no rows returned", `id="browser"`},
		},
		{
			name:        "failure reports the statement",
			sql:         "INSERT INTO t VALUES (3,'c'); SELECT * FROM missing",
			wantBody:    []string{"Statement 2 failed", "no such table"},
			notWantBody: []string{`id="browser"`},
		},
		{
			name:     "empty script",
			sql:      "  ",
			wantBody: []string{"flash-error"},
		},
		{
			name:     "truncates large results",
			sql:      "WITH RECURSIVE s(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM s WHERE i < 5) SELECT i FROM s",
			wantBody: []string{"Showing 3 of 5 rows."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := setupTestHandlers(t, 3)

			rec := httptest.NewRecorder()
			h.RunSSE(rec, f.Request(http.MethodPost, "/api/query/run", `{"sql":"`+tt.sql+`"}`))

			body := rec.Body.String()
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
			for _, unwanted := range tt.notWantBody {
				assert.NotContains(t, body, unwanted)
			}
			assert.Equal(t, tt.sql, f.Session.State().Script)
		})
	}
}

func TestRunSSE_FailureRollsBack(t *testing.T) {
	h, f := setupTestHandlers(t, 0)

	rec := httptest.NewRecorder()
	h.RunSSE(rec, f.Request(http.MethodPost, "/api/query/run", `{"sql":"DELETE FROM t; SELECT * FROM missing"}`))
	require.Contains(t, rec.Body.String(), "no such table")

	page, err := f.Console.Refresh(t.Context(), f.Session)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestScriptUploadDownload(t *testing.T) {
	h, f := setupTestHandlers(t, 0)

	rec := httptest.NewRecorder()
	h.UploadScript(rec, f.Upload("/query/script", "seed.sql", []byte("\ufeffINSERT INTO t VALUES (9,'z');\n")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "INSERT INTO t VALUES (9,'z');\n", f.Session.State().Script)

	page, err := f.Console.Refresh(t.Context(), f.Session)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "loading a script does not run it")

	rec = httptest.NewRecorder()
	h.DownloadScript(rec, f.Request(http.MethodGet, "/query/script", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "demo.sql")
	assert.Equal(t, "INSERT INTO t VALUES (9,'z');\n", rec.Body.String())
}
