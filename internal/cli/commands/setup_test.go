package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/cli/config"
	"github.com/leapstack-labs/dbbrowser/internal/cli/testutil"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, writeFileAtomic(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be removed")

	err = writeFileAtomic(filepath.Join(dir, "missing", "db.sqlite"), []byte("x"))
	require.Error(t, err)
}

func TestOpenWorkspace(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.SetContext(t.Context())
		return cmd
	}

	t.Run("existing file", func(t *testing.T) {
		path := testutil.SetupTestDatabase(t)
		ws, cleanup, err := openWorkspace(newCmd(), path)
		require.NoError(t, err)
		defer cleanup()

		assert.False(t, ws.Created)
		tables, err := ws.Console.ListTables(t.Context(), ws.Session)
		require.NoError(t, err)
		assert.Len(t, tables, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fresh.sqlite")
		ws, cleanup, err := openWorkspace(newCmd(), path)
		require.NoError(t, err)
		defer cleanup()

		assert.True(t, ws.Created)
		assert.NoFileExists(t, path, "nothing is written before save")

		require.NoError(t, ws.save(t.Context()))
		assert.FileExists(t, path)
	})

	t.Run("no path", func(t *testing.T) {
		_, _, err := openWorkspace(newCmd(), "")
		require.ErrorIs(t, err, errNoDBFlag)
	})
}

func TestNewCommandContext_UsesStoredConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OutputFormat = "json"
	cfg.Browser.PageSize = 5

	cmd := &cobra.Command{}
	cmd.SetContext(config.WithConfig(t.Context(), cfg))

	cc := NewCommandContext(cmd)
	assert.Equal(t, 5, cc.Cfg.Browser.PageSize)
	assert.Equal(t, "json", string(cc.Renderer.Mode()))

	cmd.SetContext(t.Context())
	assert.Equal(t, config.DefaultPageSize, NewCommandContext(cmd).Cfg.Browser.PageSize)
}
