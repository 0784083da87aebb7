// Package gateway executes SQL against a database handle inside a single
// transaction, so that a multi-statement script either applies completely
// or not at all.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySQL is returned for SQL text that contains no statement.
var ErrEmptySQL = errors.New("sql text is empty")

// Beginner starts transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Querier runs queries. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ResultSet holds the column names and row tuples produced by one statement.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ExecError reports the statement that failed inside a script.
type ExecError struct {
	// Index is the zero-based position of the statement in the script.
	Index     int
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Execute runs sqlText as one transaction and returns a result set for every
// statement that produces columns. On failure the transaction is rolled back
// and no result sets are returned.
func Execute(ctx context.Context, db Beginner, sqlText string) ([]ResultSet, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, ErrEmptySQL
	}
	statements := Split(sqlText)
	if len(statements) == 0 {
		return nil, ErrEmptySQL
	}

	var results []ResultSet
	err := InTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			rs, err := run(ctx, tx, stmt)
			if err != nil {
				return &ExecError{Index: i, Statement: stmt, Err: err}
			}
			if rs != nil {
				results = append(results, *rs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// InTx runs fn inside a transaction. It commits when fn succeeds; otherwise
// it rolls back and returns fn's error. A failed rollback is ignored so that
// it cannot mask the original failure.
func InTx(ctx context.Context, db Beginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// run executes one statement. Statements without result columns (DDL, DML)
// return a nil result set.
func run(ctx context.Context, q Querier, stmt string) (*ResultSet, error) {
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	rs, err := ReadResultSet(rows)
	if err != nil {
		return nil, err
	}
	if len(rs.Columns) == 0 {
		return nil, nil
	}
	return &rs, nil
}

// ReadResultSet drains rows into a ResultSet. The caller closes rows.
func ReadResultSet(rows *sql.Rows) (ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}

	rs := ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return ResultSet{}, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}
