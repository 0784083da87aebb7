package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
	"github.com/leapstack-labs/dbbrowser/internal/transfer"
)

// Result formats accepted by --format.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatYAML     = "yaml"
)

// Formats lists the accepted --format values.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown, FormatYAML}

// resolveFormat picks the result format. An explicit --format wins;
// otherwise JSON and markdown output modes select their formats.
func resolveFormat(flag string, changed bool, mode output.Mode) (string, error) {
	if changed {
		switch f := strings.ToLower(flag); f {
		case FormatTable, FormatJSON, FormatCSV, FormatMarkdown, FormatYAML:
			return f, nil
		case "markdown":
			return FormatMarkdown, nil
		case "yml":
			return FormatYAML, nil
		default:
			return "", fmt.Errorf("unknown format %q (want %s)", flag, strings.Join(Formats, ", "))
		}
	}
	switch mode {
	case output.ModeJSON:
		return FormatJSON, nil
	case output.ModeMarkdown:
		return FormatMarkdown, nil
	default:
		return FormatTable, nil
	}
}

// resultRenderer writes result sets in one format.
type resultRenderer struct {
	w       io.Writer
	format  string
	maxRows int
	styles  *output.Styles
}

// render writes every result set. Structured formats write one document
// holding all sets; tabular formats separate sets with a blank line.
func (rr *resultRenderer) render(results []gateway.ResultSet) error {
	switch rr.format {
	case FormatJSON:
		enc := json.NewEncoder(rr.w)
		enc.SetIndent("", "  ")
		return enc.Encode(documents(results))
	case FormatYAML:
		enc := yaml.NewEncoder(rr.w)
		enc.SetIndent(2)
		if err := enc.Encode(documents(results)); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintln(rr.w, "(no rows returned)")
		return nil
	}
	for i, rs := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(rr.w)
		}
		if err := rr.renderSet(rs); err != nil {
			return err
		}
	}
	return nil
}

func (rr *resultRenderer) renderSet(rs gateway.ResultSet) error {
	rows := rs.Rows
	truncated := rr.maxRows > 0 && len(rows) > rr.maxRows
	if truncated {
		rows = rows[:rr.maxRows]
	}

	if rr.format == FormatCSV {
		return transfer.WriteCSV(rr.w, rs.Columns, rows)
	}

	t := table.NewWriter()
	t.SetOutputMirror(rr.w)
	t.SetStyle(table.StyleLight)
	// Column names keep their case.
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = rr.cell(v)
		}
		t.AppendRow(row)
	}

	if rr.format == FormatMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}

	switch {
	case truncated:
		_, _ = fmt.Fprintf(rr.w, "(showing %d of %d rows)\n", len(rows), len(rs.Rows))
	case len(rs.Rows) == 1:
		_, _ = fmt.Fprintln(rr.w, "(1 row)")
	default:
		_, _ = fmt.Fprintf(rr.w, "(%d rows)\n", len(rs.Rows))
	}
	return nil
}

func (rr *resultRenderer) cell(v any) string {
	if v == nil {
		if rr.format == FormatMarkdown {
			return "NULL"
		}
		return rr.styles.Null.Render("NULL")
	}
	return gateway.FormatValue(v)
}

// document is the structured form of one result set.
type document struct {
	Columns []string         `json:"columns" yaml:"columns"`
	Rows    []map[string]any `json:"rows" yaml:"rows"`
}

func documents(results []gateway.ResultSet) []document {
	docs := make([]document, 0, len(results))
	for _, rs := range results {
		doc := document{Columns: rs.Columns, Rows: make([]map[string]any, 0, len(rs.Rows))}
		for _, r := range rs.Rows {
			row := make(map[string]any, len(r))
			for i, col := range rs.Columns {
				row[col] = plainValue(r[i])
			}
			doc.Rows = append(doc.Rows, row)
		}
		docs = append(docs, doc)
	}
	return docs
}

// plainValue keeps numbers and NULL as they are and renders everything else
// as console text.
func plainValue(v any) any {
	switch v.(type) {
	case nil, int64, float64, bool:
		return v
	default:
		return gateway.FormatValue(v)
	}
}
