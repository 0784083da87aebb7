package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filterColumns = []string{"id", "name", "Status", "created at"}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "blank",
			text:    "   ",
			wantSQL: "",
		},
		{
			name:     "comparison",
			text:     "id > 5",
			wantSQL:  `"id" > ?`,
			wantArgs: []any{int64(5)},
		},
		{
			name:     "double equals and string",
			text:     "name == 'O''Brien'",
			wantSQL:  `"name" = ?`,
			wantArgs: []any{"O'Brien"},
		},
		{
			name:     "case-insensitive column and keywords",
			text:     "status = 'open' and ID <> -2.5",
			wantSQL:  `"Status" = ? AND "id" <> ?`,
			wantArgs: []any{"open", -2.5},
		},
		{
			name:     "quoted identifiers",
			text:     `"created at" >= '2024-01-01' OR [created at] IS NULL OR ` + "`name`" + ` != 'x'`,
			wantSQL:  `"created at" >= ? OR "created at" IS NULL OR "name" != ?`,
			wantArgs: []any{"2024-01-01", "x"},
		},
		{
			name:     "precedence and grouping",
			text:     "NOT (id = 1 OR id = 2) AND name LIKE 'a%'",
			wantSQL:  `NOT ("id" = ? OR "id" = ?) AND "name" LIKE ?`,
			wantArgs: []any{int64(1), int64(2), "a%"},
		},
		{
			name:     "negated operators",
			text:     "name NOT LIKE 'tmp%' AND id NOT IN (1, 2) AND id NOT BETWEEN 10 AND 20",
			wantSQL:  `"name" NOT LIKE ? AND "id" NOT IN (?, ?) AND "id" NOT BETWEEN ? AND ?`,
			wantArgs: []any{"tmp%", int64(1), int64(2), int64(10), int64(20)},
		},
		{
			name:     "is not null and booleans",
			text:     "name IS NOT NULL AND status IN (TRUE, FALSE, NULL)",
			wantSQL:  `"name" IS NOT NULL AND "Status" IN (?, ?, NULL)`,
			wantArgs: []any{int64(1), int64(0)},
		},
		{
			name:     "injection attempt stays a bound value",
			text:     "name = '1''; DROP TABLE t; --'",
			wantSQL:  `"name" = ?`,
			wantArgs: []any{"1'; DROP TABLE t; --"},
		},
		{
			name:     "exponent number",
			text:     "id < 1e3",
			wantSQL:  `"id" < ?`,
			wantArgs: []any{1000.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.text, filterColumns)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, f.SQL)
			assert.Equal(t, tt.wantArgs, f.Args)
			assert.Equal(t, tt.text, f.Text)
		})
	}
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		unknown bool
	}{
		{name: "unknown column", text: "missing = 1", unknown: true},
		{name: "raw subquery", text: "id IN (SELECT id FROM t)"},
		{name: "statement separator", text: "id = 1; DROP TABLE t"},
		{name: "comment", text: "id = 1 -- x"},
		{name: "function call", text: "lower(name) = 'a'"},
		{name: "column compared to column", text: "id = name"},
		{name: "missing value", text: "id ="},
		{name: "unterminated string", text: "name = 'abc"},
		{name: "unbalanced paren", text: "(id = 1"},
		{name: "trailing tokens", text: "id = 1 2"},
		{name: "is without null", text: "id IS 3"},
		{name: "between without and", text: "id BETWEEN 1 OR 2"},
		{name: "empty in list", text: "id IN ()"},
		{name: "bare column", text: "id"},
		{name: "lone bang", text: "id ! 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.text, filterColumns)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFilter)
			if tt.unknown {
				assert.ErrorIs(t, err, ErrUnknownColumn)
			}
		})
	}
}

func TestParseFilter_DepthLimit(t *testing.T) {
	text := ""
	for range maxFilterDepth + 2 {
		text += "NOT "
	}
	_, err := ParseFilter(text+"id = 1", filterColumns)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
