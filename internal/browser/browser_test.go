package browser

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/testutil"
)

func seedScenario(t *testing.T) *sql.DB {
	t.Helper()
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO t VALUES (1,'a'),(2,'b')",
	)
	return db
}

func TestTables(t *testing.T) {
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db,
		"CREATE TABLE zeta (a)",
		"CREATE TABLE alpha (id INTEGER PRIMARY KEY AUTOINCREMENT)",
		"CREATE VIEW mid AS SELECT a FROM zeta",
		"CREATE INDEX zeta_a ON zeta (a)",
	)

	tables, err := Tables(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []Table{
		{Name: "alpha", Type: "table"},
		{Name: "mid", Type: "view"},
		{Name: "zeta", Type: "table"},
	}, tables, "sqlite_sequence and indexes are excluded")
}

func TestColumns(t *testing.T) {
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db,
		"CREATE TABLE k (b TEXT NOT NULL DEFAULT 'x', a INTEGER, c REAL, PRIMARY KEY (a, b))")

	cols, err := Columns(context.Background(), db, "k")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"b", "a", "c"}, ColumnNames(cols))
	assert.True(t, cols[0].NotNull)
	assert.Equal(t, "'x'", cols[0].Default.String)
	assert.Equal(t, "INTEGER", cols[1].Type)

	pk := PrimaryKey(cols)
	assert.Equal(t, []string{"a", "b"}, ColumnNames(pk), "key order, not declaration order")

	_, err = Columns(context.Background(), db, "nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestOpen_Scenario(t *testing.T) {
	db := seedScenario(t)

	page, err := Open(context.Background(), db, "t", Query{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, page.Columns)
	assert.Equal(t, [][]any{{int64(1), "a"}}, page.Rows)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.False(t, page.HasPrev())
	assert.True(t, page.HasNext())

	page, err = Open(context.Background(), db, "t", Query{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2), "b"}}, page.Rows)
	assert.False(t, page.HasNext())
}

func TestOpen_Filter(t *testing.T) {
	db := seedScenario(t)

	page, err := Open(context.Background(), db, "t", Query{Page: 1, PageSize: 10, Filter: "name = 'b'"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2), "b"}}, page.Rows)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "name = 'b'", page.Filter)

	_, err = Open(context.Background(), db, "t", Query{Page: 1, PageSize: 10, Filter: "1=1; DROP TABLE t"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	tables, err := Tables(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestOpen_Errors(t *testing.T) {
	db := seedScenario(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		query Query
		want  error
	}{
		{"page zero", "t", Query{Page: 0, PageSize: 10}, ErrInvalidPage},
		{"negative page size", "t", Query{Page: 1, PageSize: -1}, ErrInvalidPageSize},
		{"missing table", "missing", Query{Page: 1, PageSize: 10}, ErrTableNotFound},
		{"unknown filter column", "t", Query{Page: 1, PageSize: 10, Filter: "age > 3"}, ErrUnknownColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, db, tt.table, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_PaginationCoversEveryRowOnce(t *testing.T) {
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db, "CREATE TABLE n (v INTEGER)")
	for i := range 23 {
		testutil.MustExec(t, db, fmt.Sprintf("INSERT INTO n VALUES (%d)", i))
	}
	ctx := context.Background()

	for _, size := range []int{1, 4, 5, 23, 50} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			first, err := Open(ctx, db, "n", Query{Page: 1, PageSize: size})
			require.NoError(t, err)
			wantPages := (23 + size - 1) / size
			assert.Equal(t, wantPages, first.TotalPages())

			seen := make(map[int64]int)
			for p := 1; p <= first.TotalPages(); p++ {
				page, err := Open(ctx, db, "n", Query{Page: p, PageSize: size})
				require.NoError(t, err)
				assert.LessOrEqual(t, len(page.Rows), size)
				for _, row := range page.Rows {
					seen[row[0].(int64)]++
				}
			}
			assert.Len(t, seen, 23)
			for v, n := range seen {
				assert.Equal(t, 1, n, "value %d", v)
			}

			past, err := Open(ctx, db, "n", Query{Page: wantPages + 1, PageSize: size})
			require.NoError(t, err)
			assert.Empty(t, past.Rows)
		})
	}
}

func TestOpen_EmptyTable(t *testing.T) {
	db := testutil.NewMemoryDB(t)
	testutil.MustExec(t, db, "CREATE TABLE e (a, b)")

	page, err := Open(context.Background(), db, "e", Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page.Columns)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 0, page.TotalPages())
}
