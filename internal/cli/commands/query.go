package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/transfer"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	DB      string
	Format  string
	Input   string
	Save    bool
	MaxRows int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against a database file",
		Long: `Run SQL against a SQLite database file.

The file is loaded into memory and the SQL runs there as one transaction:
if any statement fails, none of the script's changes are kept. Changes are
written back to the file only with --save. A missing file starts an empty
database that --save creates.

When invoked without SQL on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  dbbrowser query --db sales.sqlite "SELECT * FROM orders LIMIT 5"

  # Run a script and keep its changes
  dbbrowser query --db sales.sqlite --input migrate.sql --save

  # Output as JSON
  dbbrowser query --db sales.sqlite "SELECT * FROM orders" --format json

  # Interactive mode
  dbbrowser query --db sales.sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database file")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatTable, "Output format: table, json, csv, md, yaml")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Write changes back to the database file")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "Maximum rows shown per result set (0: query.max_display_rows)")
	cmd.Flags().Duration("timeout", 0, "Statement timeout (default: query.timeout)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return Formats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	ws, cleanup, err := openWorkspace(cmd, opts.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	rr, err := newResultRenderer(cmd, ws.CommandContext, opts)
	if err != nil {
		return err
	}

	// Determine SQL source
	var sqlText string
	switch {
	case len(args) > 0:
		sqlText = strings.Join(args, " ")
	case opts.Input != "":
		f, err := os.Open(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText, err = transfer.ReadScript(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	case !output.IsTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, ws, rr, opts)
	}

	if err := execute(cmd, ws, rr, sqlText); err != nil {
		return err
	}
	if opts.Save {
		return ws.save(cmd.Context())
	}
	return nil
}

func newResultRenderer(cmd *cobra.Command, cc *CommandContext, opts *QueryOptions) (*resultRenderer, error) {
	format, err := resolveFormat(opts.Format, cmd.Flags().Changed("format"), cc.Renderer.EffectiveMode())
	if err != nil {
		return nil, err
	}
	maxRows := opts.MaxRows
	if maxRows == 0 {
		maxRows = cc.Cfg.Query.MaxDisplayRows
	}
	return &resultRenderer{
		w:       cc.Renderer.Writer(),
		format:  format,
		maxRows: maxRows,
		styles:  cc.Renderer.Styles(),
	}, nil
}

// execute runs sqlText and renders its result sets.
func execute(cmd *cobra.Command, ws *workspace, rr *resultRenderer, sqlText string) error {
	res, err := ws.Console.RunSQL(cmd.Context(), ws.Session, sqlText)
	if err != nil {
		return err
	}
	if err := rr.render(res.Results); err != nil {
		return err
	}
	ws.Logger.Debug("query executed", "results", len(res.Results), "elapsed", res.Elapsed)
	if ws.Cfg.Verbose {
		_, _ = fmt.Fprintln(ws.Renderer.ErrWriter(), ws.Renderer.Styles().Muted.Render("Executed in "+res.Elapsed.String()))
	}
	return nil
}
