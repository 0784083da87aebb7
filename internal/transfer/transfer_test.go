package transfer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/testutil"
)

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, note TEXT)")
	cols := []string{"id", "name", "note"}

	doc, err := ParseCSV(strings.NewReader("ID,name,note\n1,\"x,y\",\n2,b,hello\n"))
	require.NoError(t, err)

	n, err := ImportCSV(ctx, db, "t", cols, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := browser.Open(ctx, db, "t", browser.Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int64(1), "x,y", nil},
		{int64(2), "b", "hello"},
	}, page.Rows, "integer affinity applies and empty fields become NULL")
}

func TestImportCSV_Errors(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"INSERT INTO t VALUES (1, 'keep')",
	)
	cols := []string{"id", "name"}

	tests := []struct {
		name string
		doc  [][]string
		want error
	}{
		{name: "no header", doc: nil, want: ErrEmptyCSV},
		{name: "unknown column", doc: [][]string{{"id", "age"}, {"2", "3"}}, want: ErrUnknownColumn},
		{name: "short row", doc: [][]string{{"id", "name"}, {"2", "a"}, {"3"}}, want: ErrRowWidth},
		{name: "long row", doc: [][]string{{"id", "name"}, {"2", "a", "x"}}, want: ErrRowWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportCSV(ctx, db, "t", cols, tt.doc)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("engine failure rolls back earlier rows", func(t *testing.T) {
		doc := [][]string{{"id", "name"}, {"2", "new"}, {"3", ""}}
		_, err := ImportCSV(ctx, db, "t", cols, doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 3")

		var count int
		require.NoError(t, db.QueryRow("SELECT count(*) FROM t").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("header only inserts nothing", func(t *testing.T) {
		n, err := ImportCSV(ctx, db, "t", cols, [][]string{{"id", "name"}})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO t VALUES (1,'a'),(2,'b,c'),(3,NULL)",
		"CREATE TABLE empty (x, y)",
	)

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(ctx, db, "t", &buf))
	assert.Equal(t, "id,name\n1,a\n2,\"b,c\"\n3,\n", buf.String())

	buf.Reset()
	require.NoError(t, ExportCSV(ctx, db, "empty", &buf))
	assert.Equal(t, "x,y\n", buf.String())

	err := ExportCSV(ctx, db, "missing", &buf)
	assert.ErrorIs(t, err, browser.ErrTableNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewMemoryDB(t)
	testutil.MustExec(t, src,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, body TEXT)",
		`INSERT INTO t VALUES (1, 'line one
line two'), (2, 'quote "here", comma'), (3, 'plain')`,
	)
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(ctx, src, "t", &buf))

	dst := testutil.NewMemoryDB(t)
	testutil.MustExec(t, dst, "CREATE TABLE t (id INTEGER PRIMARY KEY, body TEXT)")
	doc, err := ParseCSV(&buf)
	require.NoError(t, err)
	n, err := ImportCSV(ctx, dst, "t", []string{"id", "body"}, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want, err := browser.Open(ctx, src, "t", browser.Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	got, err := browser.Open(ctx, dst, "t", browser.Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestReadScript(t *testing.T) {
	text, err := ReadScript(strings.NewReader("\ufeffSELECT 1;\nSELECT 2;"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\nSELECT 2;", text)
}
