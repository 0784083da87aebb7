package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CSVOptions holds options for the csv commands.
type CSVOptions struct {
	DB  string
	Out string
}

// NewCSVCommand creates the csv command with its import and export
// subcommands.
func NewCSVCommand() *cobra.Command {
	opts := &CSVOptions{}

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Import or export table rows as CSV",
		Long: `Import CSV rows into a table or export a whole table as CSV.

The first CSV line names the columns; names are matched to the table's
columns without regard to case. Imports append rows in one transaction and
write the database file back when every row was inserted.`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database file")

	cmd.AddCommand(newCSVImportCommand(opts))
	cmd.AddCommand(newCSVExportCommand(opts))
	return cmd
}

func newCSVImportCommand(opts *CSVOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "import TABLE FILE",
		Short:   "Append the rows of a CSV file to a table",
		Example: `  dbbrowser csv import --db sales.sqlite orders orders.csv`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, cleanup, err := openWorkspace(cmd, opts.DB)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if _, err := ws.Console.OpenTable(ctx, ws.Session, args[0]); err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			defer func() { _ = f.Close() }()

			n, err := ws.Console.ImportCSV(ctx, ws.Session, f)
			if err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}
			ws.Renderer.Success(fmt.Sprintf("Imported %d rows into %s", n, args[0]))
			return nil
		},
	}
}

func newCSVExportCommand(opts *CSVOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export TABLE",
		Short: "Write a whole table as CSV",
		Long: `Write every row of a table as CSV, ignoring any filter.

Without --out the file is named <database>-<table>.csv in the current
directory. --out - writes to standard output.`,
		Example: `  dbbrowser csv export --db sales.sqlite orders
  dbbrowser csv export --db sales.sqlite orders --out - | head`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, cleanup, err := openWorkspace(cmd, opts.DB)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if _, err := ws.Console.OpenTable(ctx, ws.Session, args[0]); err != nil {
				return err
			}
			d, err := ws.Console.ExportCSV(ctx, ws.Session)
			if err != nil {
				return err
			}

			if opts.Out == "-" {
				_, err := cmd.OutOrStdout().Write(d.Data)
				return err
			}
			path := opts.Out
			if path == "" {
				path = d.FileName
			}
			if err := writeFileAtomic(path, d.Data); err != nil {
				return err
			}
			ws.Renderer.Success("Wrote " + path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Out, "out", "O", "", "Output file, or - for standard output")
	return cmd
}
