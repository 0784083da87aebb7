package browser

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// Locator identifies a row by the values it held when it was read.
type Locator struct {
	Columns []string
	Values  []any
	// Fallback is set when the table has no primary key and the row is
	// addressed by its first column only. Such a locator may match several
	// rows; Update and Delete refuse to touch more than one.
	Fallback bool
}

// Where renders the locator as a WHERE clause body and its arguments.
// NULL values compare with IS NULL.
func (l Locator) Where() (string, []any) {
	parts := make([]string, len(l.Columns))
	var args []any
	for i, col := range l.Columns {
		if l.Values[i] == nil {
			parts[i] = gateway.QuoteIdent(col) + " IS NULL"
			continue
		}
		parts[i] = gateway.QuoteIdent(col) + " = ?"
		args = append(args, l.Values[i])
	}
	return strings.Join(parts, " AND "), args
}

// Locate builds the locator for row, a tuple read with pageColumns. Primary
// key columns are used in key order. Without a primary key the first column
// is used and the locator is flagged as a fallback, unless requirePK is set
// in which case ErrNoPrimaryKey is returned.
func Locate(cols []Column, pageColumns []string, row []any, requirePK bool) (Locator, error) {
	if len(pageColumns) == 0 || len(row) != len(pageColumns) {
		return Locator{}, fmt.Errorf("%w: row has %d values for %d columns", ErrRowIndex, len(row), len(pageColumns))
	}

	pk := PrimaryKey(cols)
	if len(pk) == 0 {
		if requirePK {
			return Locator{}, ErrNoPrimaryKey
		}
		return Locator{
			Columns:  []string{pageColumns[0]},
			Values:   []any{row[0]},
			Fallback: true,
		}, nil
	}

	loc := Locator{
		Columns: make([]string, len(pk)),
		Values:  make([]any, len(pk)),
	}
	for i, c := range pk {
		idx := indexOf(pageColumns, c.Name)
		if idx < 0 {
			return Locator{}, fmt.Errorf("%w: key column %q not in page", ErrUnknownColumn, c.Name)
		}
		loc.Columns[i] = c.Name
		loc.Values[i] = row[idx]
	}
	return loc, nil
}

// Update sets columns to values on the single row matched by loc.
func Update(ctx context.Context, db gateway.Beginner, table string, columns []string, values []any, loc Locator) error {
	if len(columns) == 0 || len(columns) != len(values) {
		return fmt.Errorf("update %s: %d columns for %d values", table, len(columns), len(values))
	}

	set := make([]string, len(columns))
	for i, c := range columns {
		set[i] = gateway.QuoteIdent(c) + " = ?"
	}
	where, whereArgs := loc.Where()
	stmt := "UPDATE " + gateway.QuoteIdent(table) + " SET " + strings.Join(set, ", ") + " WHERE " + where
	args := append(append([]any{}, values...), whereArgs...)

	return execOne(ctx, db, stmt, args)
}

// Delete removes the single row matched by loc.
func Delete(ctx context.Context, db gateway.Beginner, table string, loc Locator) error {
	where, args := loc.Where()
	return execOne(ctx, db, "DELETE FROM "+gateway.QuoteIdent(table)+" WHERE "+where, args)
}

// execOne runs stmt in a transaction and commits only if exactly one row
// was affected.
func execOne(ctx context.Context, db gateway.Beginner, stmt string, args []any) error {
	return gateway.InTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		switch {
		case n == 0:
			return ErrRowNotFound
		case n > 1:
			return fmt.Errorf("%w (%d rows)", ErrAmbiguousRow, n)
		}
		return nil
	})
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
