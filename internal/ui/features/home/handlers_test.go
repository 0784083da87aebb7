package home

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbbrowser/internal/console"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features"
	"github.com/leapstack-labs/dbbrowser/internal/ui/features/common"
)

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()

	fixture := features.SetupTestFixture(t)
	handlers := NewHandlers(fixture.Console, fixture.SessionStore, fixture.Notifier)
	return handlers, fixture
}

// runUpdates serves /updates for the fixture session until timeout,
// calling trigger once the stream is subscribed.
func runUpdates(t *testing.T, h *Handlers, f *features.TestFixture, timeout time.Duration, trigger func()) string {
	t.Helper()

	req := features.RequestWithTimeout(t, f.Request(http.MethodGet, "/updates", ""), timeout)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HomePageUpdates(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.Notifier.Len() > 0 }, time.Second, 5*time.Millisecond)
	if trigger != nil {
		trigger()
	}
	<-done
	return rec.Body.String()
}

func TestHomePage(t *testing.T) {
	tests := []struct {
		name     string
		demo     bool
		wantBody []string
	}{
		{
			name: "empty console",
			wantBody: []string{
				"<!doctype html>",
				"<title>Console - dbbrowser</title>",
				`data-init="@get('/updates')"`,
				"No databases yet.",
				"Open a table to browse its rows.",
			},
		},
		{
			name: "open table is rendered",
			demo: true,
			wantBody: []string{
				"demo",
				"Page 1 of 1",
				`<td class="text">a</td>`,
				"/api/tables/t/open",
				"/tables/t/drop",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := setupTestHandlers(t)
			if tt.demo {
				f.WithDemo()
			}

			rec := httptest.NewRecorder()
			h.HomePage(rec, f.Request(http.MethodGet, "/", ""))

			assert.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
		})
	}
}

func TestHomePage_ShowsFlashOnce(t *testing.T) {
	h, f := setupTestHandlers(t)

	// Store the flash through a first response and replay its cookie.
	rec := httptest.NewRecorder()
	common.AddFlash(rec, f.Request(http.MethodPost, "/", ""), f.SessionStore, nil, "3 rows imported")
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := f.Request(http.MethodGet, "/", "")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.HomePage(rec, req)
	assert.Contains(t, rec.Body.String(), "3 rows imported")
}

func TestHomePageUpdates_NoInitialState(t *testing.T) {
	h, f := setupTestHandlers(t)

	body := runUpdates(t, h, f, 50*time.Millisecond, nil)
	assert.Equal(t, 0, strings.Count(body, "event:"))
}

func TestHomePageUpdates_PatchesOnBroadcast(t *testing.T) {
	h, f := setupTestHandlers(t)

	body := runUpdates(t, h, f, 300*time.Millisecond, func() {
		_, err := f.Registry.Create(context.Background(), "loaded")
		require.NoError(t, err)
		f.Notifier.Broadcast()
	})

	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1)
	assert.Contains(t, body, "/api/databases/loaded/select")
}

func TestHomePageUpdates_ResyncsAfterOtherSession(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.WithDemo()

	other := f.Console.Sessions().Create()
	ctx := context.Background()
	require.NoError(t, f.Console.SelectDatabase(ctx, other, "demo"))

	body := runUpdates(t, h, f, 300*time.Millisecond, func() {
		_, err := f.Console.RunSQL(ctx, other, "INSERT INTO t VALUES (3,'c')")
		require.NoError(t, err)
	})

	assert.Contains(t, body, "(3 rows)")
	assert.Equal(t, int64(3), f.Session.State().Page.Total)
}

func TestHomePageUpdates_IgnoresOtherDatabases(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.WithDemo()

	other := f.Console.Sessions().Create()
	ctx := context.Background()
	require.NoError(t, f.Console.NewDatabase(ctx, other, "elsewhere"))

	body := runUpdates(t, h, f, 300*time.Millisecond, func() {
		_, err := f.Console.RunSQL(ctx, other, "CREATE TABLE x (a)")
		require.NoError(t, err)
	})

	assert.Equal(t, 0, strings.Count(body, "event:"))
}

func TestConcerns(t *testing.T) {
	st := console.State{Database: "demo"}
	tests := []struct {
		name   string
		change console.Change
		want   bool
	}{
		{"registry change", console.Change{Kind: console.ChangeDatabases}, true},
		{"same database", console.Change{Kind: console.ChangeData, Database: "demo"}, true},
		{"other database", console.Change{Kind: console.ChangeSchema, Database: "other"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, concerns(tt.change, st))
		})
	}
}
