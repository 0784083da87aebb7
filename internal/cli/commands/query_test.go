package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/cli/output"
	"github.com/leapstack-labs/dbbrowser/internal/cli/testutil"
	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// runCommand executes cmd with args and returns its standard output.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryCommand_Formats(t *testing.T) {
	path := testutil.SetupTestDatabase(t)
	sqlText := "SELECT id, name FROM t ORDER BY id"

	tests := []struct {
		name    string
		args    []string
		wantOut []string
	}{
		{
			name:    "table",
			args:    []string{"--format", "table"},
			wantOut: []string{"id", "name", "a", "b", "(2 rows)"},
		},
		{
			name:    "markdown by default when piped",
			args:    nil,
			wantOut: []string{"| id | name |", "| 1 | a |", "(2 rows)"},
		},
		{
			name:    "csv",
			args:    []string{"-f", "csv"},
			wantOut: []string{"id,name\n1,a\n2,b\n"},
		},
		{
			name:    "yaml",
			args:    []string{"--format", "yaml"},
			wantOut: []string{"columns:", "- id", "name: a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", path, sqlText}, tt.args...)
			out, err := runCommand(t, NewQueryCommand(), args...)
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestQueryCommand_JSON(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	out, err := runCommand(t, NewQueryCommand(), "--db", path, "-f", "json",
		"SELECT id, name FROM t WHERE id = 1; SELECT NULL AS nothing")
	require.NoError(t, err)

	var docs []struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"id", "name"}, docs[0].Columns)
	assert.Equal(t, []map[string]any{{"id": float64(1), "name": "a"}}, docs[0].Rows)
	assert.Equal(t, []map[string]any{{"nothing": nil}}, docs[1].Rows)
}

func TestQueryCommand_Save(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	_, err := runCommand(t, NewQueryCommand(), "--db", path, "INSERT INTO t VALUES (3, 'c')")
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CountRows(t, path, "t"), "changes stay in memory without --save")

	_, err = runCommand(t, NewQueryCommand(), "--db", path, "--save", "INSERT INTO t VALUES (3, 'c')")
	require.NoError(t, err)
	assert.Equal(t, 3, testutil.CountRows(t, path, "t"))
}

func TestQueryCommand_FailedScriptIsNotSaved(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	_, err := runCommand(t, NewQueryCommand(), "--db", path, "--save",
		"INSERT INTO t VALUES (3, 'c'); SELECT * FROM missing")
	require.Error(t, err)

	var execErr *gateway.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.Index)
	assert.Equal(t, 2, testutil.CountRows(t, path, "t"))
}

func TestQueryCommand_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.sqlite")

	_, err := runCommand(t, NewQueryCommand(), "--db", path, "--save",
		"CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CountRows(t, path, "t"))
}

func TestQueryCommand_InputFile(t *testing.T) {
	path := testutil.SetupTestDatabase(t)
	script := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(script, []byte("\ufeffSELECT name FROM t WHERE id = 2;\n"), 0600))

	out, err := runCommand(t, NewQueryCommand(), "--db", path, "-f", "csv", "--input", script)
	require.NoError(t, err)
	assert.Equal(t, "name\nb\n", out)
}

func TestQueryCommand_Stdin(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	cmd := NewQueryCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader("SELECT count(*) AS n FROM t;"))
	cmd.SetArgs([]string{"--db", path, "-f", "csv"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "n\n2\n", out.String())
}

func TestQueryCommand_MaxRows(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	out, err := runCommand(t, NewQueryCommand(), "--db", path, "-f", "table", "--max-rows", "1", "SELECT * FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "(showing 1 of 2 rows)")
}

func TestQueryCommand_Errors(t *testing.T) {
	path := testutil.SetupTestDatabase(t)

	_, err := runCommand(t, NewQueryCommand(), "SELECT 1")
	require.ErrorIs(t, err, errNoDBFlag)

	_, err = runCommand(t, NewQueryCommand(), "--db", path)
	require.ErrorIs(t, err, gateway.ErrEmptySQL)

	_, err = runCommand(t, NewQueryCommand(), "--db", path, "-f", "xml", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	bad := filepath.Join(t.TempDir(), "bad.sqlite")
	require.NoError(t, os.WriteFile(bad, []byte("not a database"), 0600))
	_, err = runCommand(t, NewQueryCommand(), "--db", bad, "SELECT 1")
	require.Error(t, err)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		changed bool
		mode    output.Mode
		want    string
	}{
		{name: "explicit wins", flag: "csv", changed: true, mode: output.ModeJSON, want: FormatCSV},
		{name: "markdown alias", flag: "markdown", changed: true, want: FormatMarkdown},
		{name: "json mode", flag: FormatTable, mode: output.ModeJSON, want: FormatJSON},
		{name: "markdown mode", flag: FormatTable, mode: output.ModeMarkdown, want: FormatMarkdown},
		{name: "text mode", flag: FormatTable, mode: output.ModeText, want: FormatTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFormat(tt.flag, tt.changed, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rr := &resultRenderer{w: buf, format: FormatTable, styles: output.NewStyles(buf, false)}

	require.NoError(t, rr.render(nil))
	assert.Equal(t, "(no rows returned)\n", buf.String())
}
