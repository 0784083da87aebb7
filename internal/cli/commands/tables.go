package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// TablesOptions holds options for the tables command.
type TablesOptions struct {
	QueryOptions
	Where  string
	Page   int
	Schema bool
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables [TABLE]",
		Short: "List tables or browse one page of a table",
		Long: `List the tables and views of a SQLite database file.

With a table name, prints one page of its rows. --where takes a filter in
the same language as the web console: comparisons of columns with literals
joined by AND, OR and NOT, plus LIKE, IN, BETWEEN and IS NULL.`,
		Example: `  dbbrowser tables --db sales.sqlite
  dbbrowser tables --db sales.sqlite orders --where "status = 'open'" --page 2
  dbbrowser tables --db sales.sqlite orders --schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, cleanup, err := openWorkspace(cmd, opts.DB)
			if err != nil {
				return err
			}
			defer cleanup()

			rr, err := newResultRenderer(cmd, ws.CommandContext, &opts.QueryOptions)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch {
			case len(args) == 0:
				return listTables(ctx, ws, rr)
			case opts.Schema:
				return showSchema(ctx, ws, rr, args[0])
			default:
				return browseTable(ctx, ws, rr, args[0], opts)
			}
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database file")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatTable, "Output format: table, json, csv, md, yaml")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "Row filter")
	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "Page number")
	cmd.Flags().Int("page-size", 0, "Rows per page (default: browser.page_size)")
	cmd.Flags().BoolVar(&opts.Schema, "schema", false, "Show the table's columns instead of its rows")

	return cmd
}

func listTables(ctx context.Context, ws *workspace, rr *resultRenderer) error {
	tables, err := ws.Console.ListTables(ctx, ws.Session)
	if err != nil {
		return err
	}
	rs := gateway.ResultSet{Columns: []string{"name", "type"}}
	for _, t := range tables {
		rs.Rows = append(rs.Rows, []any{t.Name, t.Type})
	}
	return rr.render([]gateway.ResultSet{rs})
}

func showSchema(ctx context.Context, ws *workspace, rr *resultRenderer, table string) error {
	cols, err := ws.Console.DescribeTable(ctx, ws.Session, table)
	if err != nil {
		return err
	}
	rs := gateway.ResultSet{Columns: []string{"column", "type", "not_null", "default", "pk"}}
	for _, c := range cols {
		var dflt any
		if c.Default.Valid {
			dflt = c.Default.String
		}
		rs.Rows = append(rs.Rows, []any{c.Name, c.Type, c.NotNull, dflt, int64(c.PK)})
	}
	return rr.render([]gateway.ResultSet{rs})
}

func browseTable(ctx context.Context, ws *workspace, rr *resultRenderer, table string, opts *TablesOptions) error {
	if opts.Page < 1 {
		return fmt.Errorf("%w: %d", browser.ErrInvalidPage, opts.Page)
	}

	page, err := ws.Console.OpenTable(ctx, ws.Session, table)
	if err != nil {
		return err
	}
	if opts.Where != "" {
		if page, err = ws.Console.SetFilter(ctx, ws.Session, opts.Where); err != nil {
			return err
		}
	}
	for page.Page < opts.Page && page.HasNext() {
		if page, err = ws.Console.NextPage(ctx, ws.Session); err != nil {
			return err
		}
	}

	if err := rr.render([]gateway.ResultSet{{Columns: page.Columns, Rows: page.Rows}}); err != nil {
		return err
	}
	if rr.format == FormatTable || rr.format == FormatMarkdown {
		_, _ = fmt.Fprintf(rr.w, "Page %d of %d (%d matching rows)\n", page.Page, page.TotalPages(), page.Total)
	}
	return nil
}
