package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// NewMemoryDB opens a private in-memory SQLite database pinned to a single
// connection and closes it when the test ends.
func NewMemoryDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MustExec runs each statement on db and fails the test on the first error.
func MustExec(t testing.TB, db *sql.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}
