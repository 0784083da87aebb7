package ui

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/testutil"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
)

func newTestServer(t *testing.T, preloadDir string) *Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	reg := registry.New(registry.Config{Logger: logger})
	t.Cleanup(func() { _ = reg.Close() })

	notify := notifier.New()
	c := console.New(console.Config{Registry: reg, Logger: logger, OnChange: notify.Publish})
	return NewServer(Config{
		Console:       c,
		Notifier:      notify,
		SessionSecret: "test-secret-key-32-bytes-long!!",
		PreloadDir:    preloadDir,
		Logger:        logger,
	})
}

func TestServerHandler_ConsoleFlow(t *testing.T) {
	s := newTestServer(t, "")
	handler, err := s.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := ts.Client()
	client.Jar = jar

	get := func(path string) (int, string) {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}
	post := func(path, signals string) string {
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(signals))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	status, body := get("/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "multi mode")

	post("/api/databases/new", `{"dbName":"shop"}`)
	post("/api/query/run", `{"sql":"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT); INSERT INTO items (name) VALUES ('pen')"}`)
	body = post("/api/tables/items/open", `{}`)
	assert.Contains(t, body, "pen")

	status, body = get("/tables/export")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "id,name\n1,pen\n", body)

	status, body = get("/static/app.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, ".grid")

	assert.Equal(t, 1, s.console.Sessions().Len(), "the cookie keeps one console session")
}

func TestServerHandler_SessionCookieSecureFlag(t *testing.T) {
	tests := []struct {
		name   string
		secure bool
	}{
		{name: "plain http", secure: false},
		{name: "behind tls proxy", secure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "")
			s.sessionStore.Options.Secure = tt.secure
			handler, err := s.Handler()
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			cookies := rec.Result().Cookies()
			require.NotEmpty(t, cookies)
			assert.Equal(t, tt.secure, cookies[0].Secure)
			assert.True(t, cookies[0].HttpOnly)
		})
	}
}

func TestServer_WatchLoadsNewFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, dir)

	// Build an image to drop into the watched directory.
	ctx := context.Background()
	src, err := s.registry.Create(ctx, "source")
	require.NoError(t, err)
	_, err = src.DB().ExecContext(ctx, "CREATE TABLE t (a)")
	require.NoError(t, err)
	image, err := s.registry.Export(ctx, src)
	require.NoError(t, err)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.watchFiles(wctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.sqlite"), image, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	select {
	case change := <-updates:
		assert.Equal(t, console.ChangeDatabases, change.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast after dropping a database file")
	}
	_, err = s.registry.Select("dropped.sqlite")
	assert.NoError(t, err)
	assert.Equal(t, 2, s.registry.Count())
}
