// Package features provides shared test utilities for UI feature tests.
package features

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/registry"
	"github.com/leapstack-labs/dbbrowser/internal/testutil"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
	"github.com/leapstack-labs/dbbrowser/internal/ui/notifier"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Registry     *registry.Registry
	Console      *console.Console
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	// Session is the console session attached by Request.
	Session *console.Session

	t *testing.T
}

// SetupTestFixture creates a multi-mode registry, a console publishing to
// a notifier, and one console session.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	reg := registry.New(registry.Config{Logger: logger, ForeignKeys: true})
	t.Cleanup(func() { _ = reg.Close() })

	notify := notifier.New()
	c := console.New(console.Config{
		Registry: reg,
		PageSize: 10,
		Logger:   logger,
		OnChange: notify.Publish,
	})

	return &TestFixture{
		Registry:     reg,
		Console:      c,
		Notifier:     notify,
		SessionStore: NewTestSessionStore(),
		Session:      c.Sessions().Create(),
		t:            t,
	}
}

// WithDemo creates database "demo" holding t(id, name) with two rows and
// opens t in the fixture session.
func (f *TestFixture) WithDemo() *TestFixture {
	f.t.Helper()
	ctx := context.Background()
	require.NoError(f.t, f.Console.NewDatabase(ctx, f.Session, "demo"))
	_, err := f.Console.RunSQL(ctx, f.Session, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT); INSERT INTO t VALUES (1,'a'),(2,'b')")
	require.NoError(f.t, err)
	_, err = f.Console.OpenTable(ctx, f.Session, "t")
	require.NoError(f.t, err)
	return f
}

// Request builds a request carrying the fixture session.
func (f *TestFixture) Request(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(common.WithSession(req.Context(), f.Session))
}

// Upload builds a multipart request with one "file" part.
func (f *TestFixture) Upload(target, filename string, data []byte) *http.Request {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(f.t, err)
	_, err = part.Write(data)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(common.WithSession(req.Context(), f.Session))
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// RequestWithTimeout wraps a request with a context timeout.
func RequestWithTimeout(t *testing.T, r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	t.Cleanup(cancel)
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
	store.Options.Secure = false
	return store
}
