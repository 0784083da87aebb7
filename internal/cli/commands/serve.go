package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/ui"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	NoBrowser bool
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the web console",
		Long: `Start a local web server providing the database console.

The console keeps databases in memory. Create empty databases, open
.sqlite files from your machine, browse and edit tables page by page, run
SQL scripts and move data in and out as CSV. Nothing is written to disk
unless you download it.

Database files in --preload-dir are opened at startup, and with --watch
new files dropped into the directory are opened as they appear.`,
		Example: `  # Start on the default port
  dbbrowser serve

  # One database at a time, opening every file in ./data
  dbbrowser serve --mode single --preload-dir ./data

  # Start without auto-opening the browser
  dbbrowser serve --port 3000 --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default: ui.port)")
	cmd.Flags().String("mode", "", "Registry mode: single or multi (default: registry.mode)")
	cmd.Flags().Int("max-databases", 0, "Maximum databases in multi mode, 0 for no limit")
	cmd.Flags().String("preload-dir", "", "Directory of database files to open at startup")
	cmd.Flags().Bool("watch", true, "Open database files added to the preload directory")
	cmd.Flags().Int("page-size", 0, "Default rows per page (default: browser.page_size)")
	cmd.Flags().Bool("require-pk", false, "Refuse row edits on tables without a primary key")
	cmd.Flags().Duration("session-ttl", 0, "Idle time after which a console session expires")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable live reload of the UI")
	_ = cmd.Flags().MarkHidden("dev")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(registry.ModeMulti), string(registry.ModeSingle)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc := NewCommandContext(cmd)
	cfg := cc.Cfg
	logger := cc.Logger

	mode, err := registry.ParseMode(cfg.Registry.Mode)
	if err != nil {
		return err
	}

	secret := cfg.UI.SessionSecret
	if secret == "" {
		secret, err = generateSessionSecret()
		if err != nil {
			return err
		}
		logger.Warn("ui.session_secret is not set; console sessions end when the server restarts")
	}

	notify := notifier.New()
	c := newConsole(cfg, logger, mode, notify.Publish)
	defer func() { _ = c.Registry().Close() }()

	server := ui.NewServer(ui.Config{
		Console:        c,
		Notifier:       notify,
		Port:           cfg.UI.Port,
		SessionSecret:  secret,
		PreloadDir:     cfg.UI.PreloadDir,
		Watch:          cfg.UI.Watch,
		MaxDisplayRows: cfg.Query.MaxDisplayRows,
		IsDev:          opts.Dev,
		SecureCookies:  cfg.UI.SecureCookies,
		Logger:         logger,
	})

	url := fmt.Sprintf("http://localhost:%d", cfg.UI.Port)
	if cfg.UI.AutoOpen && !opts.NoBrowser {
		go openBrowser(url)
	}

	cc.Renderer.Success("Starting console on " + url)
	cc.Renderer.Muted("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// generateSessionSecret returns a random key for signing session cookies.
func generateSessionSecret() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errors.New("failed to generate session secret")
	}
	return hex.EncodeToString(b), nil
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
