package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: %q is not text or json", c.LogFormat))
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}

	if _, err := registry.ParseMode(c.Registry.Mode); err != nil {
		errs = append(errs, fmt.Errorf("registry.mode: %w", err))
	}
	if c.Registry.MaxDatabases < 0 {
		errs = append(errs, errors.New("registry.max_databases must not be negative"))
	}

	if c.Browser.PageSize < 1 {
		errs = append(errs, errors.New("browser.page_size must be at least 1"))
	}
	if c.Browser.MaxPageSize < c.Browser.PageSize {
		errs = append(errs, fmt.Errorf("browser.max_page_size (%d) is below browser.page_size (%d)",
			c.Browser.MaxPageSize, c.Browser.PageSize))
	}

	if c.Query.Timeout < 0 {
		errs = append(errs, errors.New("query.timeout must not be negative"))
	}
	if c.Query.MaxDisplayRows < 0 {
		errs = append(errs, errors.New("query.max_display_rows must not be negative"))
	}

	if c.UI.Port < 1 || c.UI.Port > 65535 {
		errs = append(errs, fmt.Errorf("ui.port %d is out of range", c.UI.Port))
	}
	if c.UI.SessionTTL < 0 {
		errs = append(errs, errors.New("ui.session_ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
