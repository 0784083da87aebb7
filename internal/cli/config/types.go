// Package config loads dbbrowser configuration from defaults, a YAML file,
// DBBROWSER_ environment variables and command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	LogLevel     string         `koanf:"log_level"`
	LogFormat    string         `koanf:"log_format"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	Registry     RegistryConfig `koanf:"registry"`
	Browser      BrowserConfig  `koanf:"browser"`
	Query        QueryConfig    `koanf:"query"`
	UI           UIConfig       `koanf:"ui"`
}

// RegistryConfig configures the in-memory database registry.
type RegistryConfig struct {
	Mode         string `koanf:"mode"`
	MaxDatabases int    `koanf:"max_databases"`
	ForeignKeys  bool   `koanf:"foreign_keys"`
}

// BrowserConfig configures table browsing.
type BrowserConfig struct {
	PageSize          int  `koanf:"page_size"`
	MaxPageSize       int  `koanf:"max_page_size"`
	RequirePrimaryKey bool `koanf:"require_primary_key"`
}

// QueryConfig configures SQL execution.
type QueryConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	MaxDisplayRows int           `koanf:"max_display_rows"`
}

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int           `koanf:"port"`
	AutoOpen      bool          `koanf:"auto_open"`
	SessionSecret string        `koanf:"session_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	PreloadDir    string        `koanf:"preload_dir"`
	Watch         bool          `koanf:"watch"`
	// SecureCookies marks the session cookie Secure; set it only when a
	// TLS-terminating proxy fronts the server.
	SecureCookies bool `koanf:"secure_cookies"`
}

// Default configuration values.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultOutput         = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultMode           = "multi"
	DefaultPageSize       = 20
	DefaultMaxPageSize    = 1000
	DefaultTimeout        = 30 * time.Second
	DefaultMaxDisplayRows = 1000
	DefaultPort           = 8765
	DefaultSessionTTL     = 12 * time.Hour
)

// defaults returns the lowest-precedence configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"log_level":                   DefaultLogLevel,
		"log_format":                  DefaultLogFormat,
		"verbose":                     false,
		"output":                      DefaultOutput,
		"registry.mode":               DefaultMode,
		"registry.max_databases":      0,
		"registry.foreign_keys":       true,
		"browser.page_size":           DefaultPageSize,
		"browser.max_page_size":       DefaultMaxPageSize,
		"browser.require_primary_key": false,
		"query.timeout":               DefaultTimeout.String(),
		"query.max_display_rows":      DefaultMaxDisplayRows,
		"ui.port":                     DefaultPort,
		"ui.auto_open":                true,
		"ui.session_secret":           "",
		"ui.session_ttl":              DefaultSessionTTL.String(),
		"ui.preload_dir":              "",
		"ui.watch":                    true,
		"ui.secure_cookies":           false,
	}
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		OutputFormat: DefaultOutput,
		Registry:     RegistryConfig{Mode: DefaultMode, ForeignKeys: true},
		Browser:      BrowserConfig{PageSize: DefaultPageSize, MaxPageSize: DefaultMaxPageSize},
		Query:        QueryConfig{Timeout: DefaultTimeout, MaxDisplayRows: DefaultMaxDisplayRows},
		UI: UIConfig{
			Port:       DefaultPort,
			AutoOpen:   true,
			SessionTTL: DefaultSessionTTL,
			Watch:      true,
		},
	}
}
