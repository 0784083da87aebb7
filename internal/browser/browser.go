// Package browser reads and edits table contents page by page. Row filters
// are written in a restricted expression language that is compiled to a
// parameterized WHERE clause, and rows are addressed by locators built from
// their primary key values.
package browser

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// Sentinel errors returned by browser operations.
var (
	ErrTableNotFound   = errors.New("table not found")
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be at least 1")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNoPrimaryKey    = errors.New("table has no primary key")
	ErrRowNotFound     = errors.New("row no longer exists")
	ErrAmbiguousRow    = errors.New("locator matches more than one row")
	ErrRowIndex        = errors.New("row index out of range")
)

// Table describes a table or view listed in the schema.
type Table struct {
	Name string
	// Type is "table" or "view".
	Type string
}

// Column describes one column as reported by PRAGMA table_info.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	Default sql.NullString
	// PK is the 1-based position of the column in the primary key, or 0.
	PK int
}

// Query selects one page of a table.
type Query struct {
	Page     int
	PageSize int
	Filter   string
}

// Page is a rendered slice of a table.
type Page struct {
	Table    string
	Columns  []string
	Rows     [][]any
	Page     int
	PageSize int
	// Total counts the rows matching the filter across all pages.
	Total  int64
	Filter string
}

// TotalPages returns ceil(Total / PageSize).
func (p *Page) TotalPages() int {
	if p.PageSize < 1 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// HasPrev reports whether a previous page exists.
func (p *Page) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a later page exists.
func (p *Page) HasNext() bool { return p.Page < p.TotalPages() }

// Tables lists user tables and views sorted by name. Internal sqlite_
// tables are excluded.
func Tables(ctx context.Context, q gateway.Querier) ([]Table, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns returns the columns of table in declaration order.
func Columns(ctx context.Context, q gateway.Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.NotNull, &c.Default, &c.PK); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

// ColumnNames returns the names of cols.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key columns in key order.
func PrimaryKey(cols []Column) []Column {
	var pk []Column
	for _, c := range cols {
		if c.PK > 0 {
			pk = append(pk, c)
		}
	}
	sort.SliceStable(pk, func(i, j int) bool { return pk[i].PK < pk[j].PK })
	return pk
}

// Open reads one page of table. The filter is parsed against the table's
// columns; an empty filter selects every row.
func Open(ctx context.Context, q gateway.Querier, table string, query Query) (*Page, error) {
	if query.Page < 1 {
		return nil, ErrInvalidPage
	}
	if query.PageSize < 1 {
		return nil, ErrInvalidPageSize
	}

	cols, err := Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	filter, err := ParseFilter(query.Filter, ColumnNames(cols))
	if err != nil {
		return nil, err
	}

	from := " FROM " + gateway.QuoteIdent(table)
	if !filter.Empty() {
		from += " WHERE " + filter.SQL
	}

	total, err := count(ctx, q, "SELECT count(*)"+from, filter.Args)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}

	offset := int64(query.Page-1) * int64(query.PageSize)
	args := append(append([]any{}, filter.Args...), query.PageSize, offset)
	rows, err := q.QueryContext(ctx, "SELECT "+gateway.PlainColumns(ColumnNames(cols))+from+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := gateway.ReadResultSet(rows)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	return &Page{
		Table:    table,
		Columns:  rs.Columns,
		Rows:     rs.Rows,
		Page:     query.Page,
		PageSize: query.PageSize,
		Total:    total,
		Filter:   query.Filter,
	}, nil
}

func count(ctx context.Context, q gateway.Querier, query string, args []any) (int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
