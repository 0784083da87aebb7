package common

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

type sessionCtxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *console.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFrom returns the console session stored by the Sessions
// middleware, or nil.
func SessionFrom(ctx context.Context) *console.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*console.Session)
	return s
}

// Sessions resolves the console session of each request from the cookie
// session, creating one when the cookie is missing or its session expired.
func Sessions(store sessions.Store, manager *console.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := store.Get(r, SessionName)
			if err != nil {
				// A cookie signed with another secret decodes to a fresh session.
				logger.Debug("discarding unreadable session cookie", "error", err)
			}

			id, _ := cookie.Values[sessionIDKey].(string)
			s, created := manager.GetOrCreate(id)
			if created {
				cookie.Values[sessionIDKey] = s.ID
				if err := cookie.Save(r, w); err != nil {
					logger.Error("failed to save session cookie", "error", err)
				}
				logger.Debug("console session created", "session", s.ID)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// AddFlash stores a one-shot message shown on the next full page render.
// It must be called before the response is written.
func AddFlash(w http.ResponseWriter, r *http.Request, store sessions.Store, err error, info string) {
	cookie, _ := store.Get(r, SessionName)
	if s := SessionFrom(r.Context()); s != nil {
		cookie.Values[sessionIDKey] = s.ID
	}
	if err != nil {
		cookie.AddFlash(ErrorMessage(err), flashError)
	}
	if info != "" {
		cookie.AddFlash(info, flashInfo)
	}
	_ = cookie.Save(r, w)
}

// TakeFlash removes and returns the pending flash messages.
func TakeFlash(w http.ResponseWriter, r *http.Request, store sessions.Store) (errMsg, info string) {
	cookie, err := store.Get(r, SessionName)
	if err != nil {
		return "", ""
	}
	errs := cookie.Flashes(flashError)
	infos := cookie.Flashes(flashInfo)
	if len(errs) == 0 && len(infos) == 0 {
		return "", ""
	}
	if len(errs) > 0 {
		errMsg, _ = errs[len(errs)-1].(string)
	}
	if len(infos) > 0 {
		info, _ = infos[len(infos)-1].(string)
	}
	_ = cookie.Save(r, w)
	return errMsg, info
}
