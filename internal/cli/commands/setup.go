package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbbrowser/internal/cli/config"
	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
)

// errNoDBFlag is returned by file commands run without --db.
var errNoDBFlag = errors.New("--db is required (path to a SQLite database file)")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the config and logger the
// root command stored in the context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the loaded configuration, or the defaults when a
// command runs outside the root command (as in tests).
func getConfig(ctx context.Context) *config.Config {
	if ctx != nil {
		if cfg := config.FromContext(ctx); cfg != nil {
			return cfg
		}
	}
	return config.Default()
}

// newConsole builds a console over a fresh registry configured from cfg.
func newConsole(cfg *config.Config, logger *slog.Logger, mode registry.Mode, onChange func(console.Change)) *console.Console {
	reg := registry.New(registry.Config{
		Mode:         mode,
		MaxDatabases: cfg.Registry.MaxDatabases,
		ForeignKeys:  cfg.Registry.ForeignKeys,
		Logger:       logger,
	})
	return console.New(console.Config{
		Registry:          reg,
		PageSize:          cfg.Browser.PageSize,
		MaxPageSize:       cfg.Browser.MaxPageSize,
		RequirePrimaryKey: cfg.Browser.RequirePrimaryKey,
		QueryTimeout:      cfg.Query.Timeout,
		SessionTTL:        cfg.UI.SessionTTL,
		Logger:            logger,
		OnChange:          onChange,
	})
}

// workspace is a console with a single session over one database file.
// The file is read into memory on open and written back only by save.
type workspace struct {
	*CommandContext
	Console *console.Console
	Session *console.Session
	Path    string
	// Created is set when the file did not exist and an empty database
	// was created in its place.
	Created bool
}

// openWorkspace loads the database file at path. A missing file yields an
// empty database named after it.
func openWorkspace(cmd *cobra.Command, path string) (*workspace, func(), error) {
	if path == "" {
		return nil, nil, errNoDBFlag
	}

	cc := NewCommandContext(cmd)
	c := newConsole(cc.Cfg, cc.Logger, registry.ModeSingle, nil)
	s := c.Sessions().Create()
	ctx := cmd.Context()
	name := filepath.Base(path)

	cleanup := func() {
		_ = c.Registry().Close()
	}

	ws := &workspace{CommandContext: cc, Console: c, Session: s, Path: path}

	image, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ws.Created = true
		err = c.NewDatabase(ctx, s, name)
	case err != nil:
		err = fmt.Errorf("failed to read %s: %w", path, err)
	default:
		err = c.OpenDatabase(ctx, s, name, image)
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cc.Logger.Debug("database opened", "path", path, "created", ws.Created)
	return ws, cleanup, nil
}

// save writes the in-memory database back to its file.
func (w *workspace) save(ctx context.Context) error {
	d, err := w.Console.ExportDatabase(ctx, w.Session)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(w.Path, d.Data); err != nil {
		return err
	}
	w.Logger.Info("database saved", "path", w.Path, "bytes", len(d.Data))
	return nil
}

// writeFileAtomic replaces path with data through a temporary file in the
// same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // database files are shared with other tools
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
