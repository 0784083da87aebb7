package components

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestCell(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "null", value: nil, want: `<td class="null">NULL</td>`},
		{name: "text is escaped", value: "<b>&", want: `<td class="text">&lt;b&gt;&amp;</td>`},
		{name: "integer", value: int64(7), want: `<td class="integer">7</td>`},
		{name: "blob as hex", value: []byte{0x00, 0xff}, want: `<td class="blob">00ff</td>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, Cell(tt.value)))
		})
	}
}

func TestPager(t *testing.T) {
	tests := []struct {
		name         string
		page         browser.Page
		wantText     string
		wantDisabled int
	}{
		{
			name:         "single page disables both buttons",
			page:         browser.Page{Page: 1, PageSize: 20, Total: 3},
			wantText:     "Page 1 of 1 (3 rows)",
			wantDisabled: 2,
		},
		{
			name:         "middle page",
			page:         browser.Page{Page: 2, PageSize: 10, Total: 25},
			wantText:     "Page 2 of 3 (25 rows)",
			wantDisabled: 0,
		},
		{
			name:         "last page",
			page:         browser.Page{Page: 3, PageSize: 10, Total: 25},
			wantText:     "Page 3 of 3 (25 rows)",
			wantDisabled: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, Pager(&tt.page))
			assert.Contains(t, html, tt.wantText)
			assert.Equal(t, tt.wantDisabled, strings.Count(html, " disabled>"))
		})
	}
}

func TestGrid(t *testing.T) {
	page := &browser.Page{
		Table:    "t",
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "a"}, {int64(2), nil}},
		Page:     1,
		PageSize: 20,
		Total:    2,
	}
	html := render(t, Grid(page))
	assert.Contains(t, html, "<th>id</th><th>name</th>")
	assert.Contains(t, html, `<td class="integer">2</td><td class="null">NULL</td>`)
	assert.Contains(t, html, "/api/rows/1/delete")
	assert.NotContains(t, html, "No rows.")

	empty := render(t, Grid(&browser.Page{Columns: []string{"id"}, Page: 1, PageSize: 20}))
	assert.Contains(t, empty, `colspan="2">No rows.</td>`)
}

func TestRowEditor(t *testing.T) {
	html := render(t, RowEditor(console.RowDraft{
		Index:    4,
		Columns:  []string{"id", "note"},
		Values:   []string{"1", `say "hi"`},
		Null:     []bool{false, true},
		Fallback: true,
	}))

	assert.Contains(t, html, `name="v1" value="say &#34;hi&#34;"`)
	assert.Contains(t, html, `name="n1" value="1" checked>`)
	assert.NotContains(t, html, `name="n0" value="1" checked`)
	assert.Contains(t, html, "/api/rows/4/save")
	assert.Contains(t, html, "no primary key")
}

func TestResults(t *testing.T) {
	tests := []struct {
		name    string
		view    *QueryView
		want    []string
		notWant []string
	}{
		{
			name: "nothing run yet",
			view: nil,
			want: []string{`<div id="results" class="results"></div>`},
		},
		{
			name:    "error",
			view:    &QueryView{Error: "Statement 1 failed: boom"},
			want:    []string{`<p class="flash-error">Statement 1 failed: boom</p>`},
			notWant: []string{"Executed in"},
		},
		{
			name: "statement without rows",
			view: &QueryView{Elapsed: 2 * time.Millisecond},
			want: []string{"no rows returned", "Executed in 2ms"},
		},
		{
			name: "truncated result set",
			view: &QueryView{
				MaxRows: 2,
				Results: []gateway.ResultSet{{Columns: []string{"i"}, Rows: [][]any{{int64(1)}, {int64(2)}, {int64(3)}}}},
			},
			want:    []string{"<th>i</th>", `<td class="integer">2</td>`, "Showing 2 of 3 rows."},
			notWant: []string{`<td class="integer">3</td>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, Results(tt.view))
			for _, want := range tt.want {
				assert.Contains(t, html, want)
			}
			for _, unwanted := range tt.notWant {
				assert.NotContains(t, html, unwanted)
			}
		})
	}
}

func TestPage(t *testing.T) {
	data := AppData{
		State:       console.State{Database: "shop", Table: "items", PageSize: 20, Script: "SELECT '<x>'"},
		Mode:        "multi",
		Databases:   []console.DatabaseInfo{{Name: "shop", Active: true}, {Name: "a b"}},
		Tables:      []browser.Table{{Name: "items", Type: "table"}, {Name: "v", Type: "view"}},
		MaxPageSize: 50,
	}
	html := render(t, Page("Console", data))

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>Console - dbbrowser</title>")
	assert.Contains(t, html, `<li class="item active"><button class="link" data-on:click="@post(&#39;/api/databases/shop/select&#39;)">shop</button>`)
	assert.Contains(t, html, "/api/databases/a%20b/select")
	assert.Contains(t, html, `action="/tables/items/drop"`)
	assert.Contains(t, html, `<span class="badge">view</span>`)
	assert.Contains(t, html, `\u003cx\u003e`, "signals are escaped into the attribute")
	assert.NotContains(t, html, "<x>")
	assert.Contains(t, html, "multi mode")
}

func TestPageSizeOptions(t *testing.T) {
	assert.Equal(t, []int{10, 20, 50}, pageSizeOptions(50))
	assert.Empty(t, pageSizeOptions(5))
}
