// Package transfer moves table data in and out of a database as CSV and
// names the files produced by database, backup, table and script exports.
package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// Sentinel errors returned by CSV import.
var (
	ErrEmptyCSV      = errors.New("csv document is empty")
	ErrUnknownColumn = errors.New("csv header names an unknown column")
	ErrRowWidth      = errors.New("csv row width does not match header")
)

// ImportCSV inserts the data rows of doc into table. Row 0 is the header
// and names target columns; every header name must be one of tableColumns.
// Empty fields are inserted as NULL. All rows are inserted in one
// transaction, so a failing row leaves the table untouched. It returns the
// number of inserted rows.
func ImportCSV(ctx context.Context, db gateway.Beginner, table string, tableColumns []string, doc [][]string) (int, error) {
	if len(doc) == 0 || len(doc[0]) == 0 {
		return 0, ErrEmptyCSV
	}

	header, err := resolveHeader(doc[0], tableColumns)
	if err != nil {
		return 0, err
	}
	for i, row := range doc[1:] {
		if len(row) != len(header) {
			return 0, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrRowWidth, i+2, len(row), len(header))
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		gateway.QuoteIdent(table), gateway.QuoteIdents(header), placeholders)

	inserted := 0
	err = gateway.InTx(ctx, db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		args := make([]any, len(header))
		for i, row := range doc[1:] {
			for j, field := range row {
				if field == "" {
					args[j] = nil
				} else {
					args[j] = field
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("line %d: %w", i+2, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import into %s: %w", table, err)
	}
	return inserted, nil
}

// resolveHeader maps header names onto table column names. Matching falls
// back to case-insensitive comparison, as SQLite does for identifiers.
func resolveHeader(header, tableColumns []string) ([]string, error) {
	resolved := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		col, ok := matchColumn(name, tableColumns)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		resolved[i] = col
	}
	return resolved, nil
}

func matchColumn(name string, columns []string) (string, bool) {
	for _, c := range columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// ExportCSV writes every row of table to w. An empty table produces the
// header line only.
func ExportCSV(ctx context.Context, q gateway.Querier, table string, w io.Writer) error {
	cols, err := browser.Columns(ctx, q, table)
	if err != nil {
		return err
	}

	rows, err := q.QueryContext(ctx, "SELECT "+gateway.PlainColumns(browser.ColumnNames(cols))+" FROM "+gateway.QuoteIdent(table))
	if err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := gateway.ReadResultSet(rows)
	if err != nil {
		return fmt.Errorf("export %s: %w", table, err)
	}
	return WriteCSV(w, rs.Columns, rs.Rows)
}

// ReadScript reads an SQL script file as text. A leading byte order mark
// is dropped. The script is not executed.
func ReadScript(r io.Reader) (string, error) {
	data, err := io.ReadAll(stripBOM(r))
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}
