package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/JonMunkholm/ParkingTable/internal/logging"
	"github.com/google/uuid"
)

// SessionCookie names the cookie that carries the table session id.
const SessionCookie = "table_session"

// SessionOptions configures the Session middleware.
type SessionOptions struct {
	// TTL is the cookie lifetime; it matches the idle sweep TTL
	TTL time.Duration

	// LoadTimeout bounds the initial load of a new session's table
	LoadTimeout time.Duration

	// Secure marks the cookie HTTPS-only
	Secure bool

	// StartsSession reports whether a request that carries no session
	// cookie may create one. Nil lets every request start a session.
	StartsSession func(*http.Request) bool
}

type tableCtxKey struct{}

// Session resolves the request's RecordTable from the session cookie.
//
// A malformed or expired cookie gets a fresh session whose table is loaded
// with an empty search before the handler runs. A request without a cookie
// only gets one when StartsSession allows it; otherwise it continues with no
// table on the context. A failed initial load is not fatal: the table reports
// it through its view.
func Session(sessions *core.Sessions, opts SessionOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, table, hasCookie := lookupSession(r, sessions)
			if table == nil {
				if !hasCookie && opts.StartsSession != nil && !opts.StartsSession(r) {
					next.ServeHTTP(w, r)
					return
				}
				id = uuid.NewString()
				table = sessions.Create(id)
				ctx = core.ContextWithSessionID(ctx, id)
				initialLoad(ctx, table, opts.LoadTimeout)
			} else {
				ctx = core.ContextWithSessionID(ctx, id)
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(opts.TTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx = context.WithValue(ctx, tableCtxKey{}, table)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TableFromContext returns the table attached by Session.
func TableFromContext(ctx context.Context) (*core.RecordTable, bool) {
	t, ok := ctx.Value(tableCtxKey{}).(*core.RecordTable)
	return t, ok && t != nil
}

// WithTable attaches table to ctx. Used by tests that bypass Session.
func WithTable(ctx context.Context, table *core.RecordTable) context.Context {
	return context.WithValue(ctx, tableCtxKey{}, table)
}

// lookupSession resolves the cookie to a live table. hasCookie is true
// whenever the cookie was sent, even if it names no session.
func lookupSession(r *http.Request, sessions *core.Sessions) (id string, table *core.RecordTable, hasCookie bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", nil, false
	}
	parsed, err := uuid.Parse(c.Value)
	if err != nil {
		return "", nil, true
	}
	table, ok := sessions.Get(parsed.String())
	if !ok {
		return "", nil, true
	}
	return parsed.String(), table, true
}

func initialLoad(ctx context.Context, table *core.RecordTable, timeout time.Duration) {
	logger := logging.FromContext(ctx)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := table.Load(ctx); err != nil {
		logger.Warn("initial sensor load failed", "error", err)
		return
	}
	logger.Info("table session created", "records", table.View().TotalCount)
}
