package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to a fresh directory so no stray dbbrowser.yaml is found.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "dbbrowser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("log-level", "", "")
	fs.StringP("output", "o", "", "")
	fs.Int("port", 0, "")
	fs.String("mode", "", "")
	fs.Duration("timeout", 0, "")
	fs.Bool("watch", true, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultMode, cfg.Registry.Mode)
	assert.True(t, cfg.Registry.ForeignKeys)
	assert.Equal(t, DefaultPageSize, cfg.Browser.PageSize)
	assert.Equal(t, DefaultMaxPageSize, cfg.Browser.MaxPageSize)
	assert.Equal(t, DefaultTimeout, cfg.Query.Timeout)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.Equal(t, DefaultSessionTTL, cfg.UI.SessionTTL)
	assert.True(t, cfg.UI.Watch)
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdir(t)
	writeConfig(t, dir, `
log_level: debug
registry:
  mode: single
  max_databases: 3
browser:
  page_size: 50
query:
  timeout: 2s
ui:
  port: 9000
  session_ttl: 30m
  preload_dir: data
`)

	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "dbbrowser.yaml", loader.FileUsed())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "single", cfg.Registry.Mode)
	assert.Equal(t, 3, cfg.Registry.MaxDatabases)
	assert.Equal(t, 50, cfg.Browser.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.Equal(t, 30*time.Minute, cfg.UI.SessionTTL)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.UI.PreloadDir)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	chdir(t)

	_, err := LoadConfig("nope.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	dir := chdir(t)
	writeConfig(t, dir, "ui:\n  port: 9000\nbrowser:\n  page_size: 50\n")
	t.Setenv("DBBROWSER_UI_PORT", "9100")
	t.Setenv("DBBROWSER_QUERY_TIMEOUT", "750ms")
	t.Setenv("DBBROWSER_LOG_FORMAT", "json")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.UI.Port)
	assert.Equal(t, 50, cfg.Browser.PageSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Query.Timeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	dir := chdir(t)
	writeConfig(t, dir, "ui:\n  port: 9000\n")
	t.Setenv("DBBROWSER_UI_PORT", "9100")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--port", "9200", "--mode", "single", "--timeout", "5s", "-o", "json"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.UI.Port)
	assert.Equal(t, "single", cfg.Registry.Mode)
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	chdir(t)
	t.Setenv("DBBROWSER_UI_WATCH", "false")

	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.False(t, cfg.UI.Watch)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel:     "info",
			LogFormat:    "text",
			OutputFormat: "auto",
			Registry:     RegistryConfig{Mode: "multi"},
			Browser:      BrowserConfig{PageSize: 20, MaxPageSize: 100},
			UI:           UIConfig{Port: 8765},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, errSubstr: "log_level"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: "log_format"},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "html" }, errSubstr: "output"},
		{name: "bad mode", mutate: func(c *Config) { c.Registry.Mode = "many" }, errSubstr: "registry.mode"},
		{name: "zero page size", mutate: func(c *Config) { c.Browser.PageSize = 0 }, errSubstr: "browser.page_size"},
		{name: "max below page", mutate: func(c *Config) { c.Browser.MaxPageSize = 10 }, errSubstr: "max_page_size"},
		{name: "negative timeout", mutate: func(c *Config) { c.Query.Timeout = -time.Second }, errSubstr: "query.timeout"},
		{name: "port out of range", mutate: func(c *Config) { c.UI.Port = 70000 }, errSubstr: "ui.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ui.session_ttl", envKey("DBBROWSER_UI_SESSION_TTL"))
	assert.Equal(t, "registry.max_databases", envKey("DBBROWSER_REGISTRY_MAX_DATABASES"))
	assert.Equal(t, "log_level", envKey("DBBROWSER_LOG_LEVEL"))
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "ui.port", flagKey("port"))
	assert.Equal(t, "log_level", flagKey("log-level"))
	assert.Empty(t, flagKey("config"))
	assert.Empty(t, flagKey("db"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "info", "xml")
	require.Error(t, err)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger, err := NewLogger(&bytes.Buffer{}, "info", "text")
	require.NoError(t, err)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestDefault_MatchesLoadedDefaults(t *testing.T) {
	chdir(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, Default().Validate())
}
