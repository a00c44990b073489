// gate.go -- Access gate middleware.
//
// Mounted at the router root. Classifies every request as public (/login) or
// protected (everything else not exempt) and the session as authenticated,
// unauthenticated or invalid, then allows or redirects.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MGallo-Code/adminity/internal/metrics"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/web"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const claimsKey contextKey = "session_claims"

// ClaimsFromContext retrieves the authenticated session from context.
// Returns nil and false if the gate hasn't admitted the request as authenticated.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*session.Claims)
	return c, ok && c != nil
}

// WithClaims returns ctx carrying claims. Used by the gate and by handler tests.
func WithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Gate actions, used as the "action" metric label.
const (
	actionAllow         = "allow"
	actionRedirectHome  = "redirect_home"
	actionRedirectLogin = "redirect_login"
)

// Gate redirects unauthenticated requests away from protected pages and
// authenticated ones away from the login page.
type Gate struct {
	Sessions  *session.CookieStore
	Metrics   *metrics.Metrics
	LoginPath string // default "/login"
	HomePath  string // default "/dashboard"
}

func (g *Gate) loginPath() string {
	if g.LoginPath == "" {
		return "/login"
	}
	return g.LoginPath
}

func (g *Gate) homePath() string {
	if g.HomePath == "" {
		return "/dashboard"
	}
	return g.HomePath
}

// exempt reports whether path bypasses the gate entirely.
func exempt(path string) bool {
	switch path {
	case "/favicon.ico", "/healthz":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// Middleware applies the gate decision table to every non-exempt request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		claims, state := g.lookup(r)
		public := r.URL.Path == g.loginPath()

		switch {
		case public && state == session.Valid:
			g.redirect(w, r, state, g.homePath(), actionRedirectHome)
		case public:
			g.allow(w, r, state, next)
		case state == session.Valid:
			g.allow(w, r.WithContext(WithClaims(r.Context(), claims)), state, next)
		case state == session.Invalid:
			g.Sessions.Destroy(w)
			g.redirect(w, r, state, g.loginPath(), actionRedirectLogin)
		default:
			g.redirect(w, r, state, g.loginPath(), actionRedirectLogin)
		}
	})
}

// lookup classifies the session cookie; a panic anywhere in decoding is an invalid token.
func (g *Gate) lookup(r *http.Request) (claims *session.Claims, state session.State) {
	defer func() {
		if rec := recover(); rec != nil {
			web.LogWarn(r, "session decode panicked", "panic", fmt.Sprint(rec))
			g.Metrics.DecodeFailure("panic")
			claims, state = nil, session.Invalid
		}
	}()

	claims, state, err := g.Sessions.Lookup(r)
	if state == session.Invalid {
		reason := session.Reason(err)
		g.Metrics.DecodeFailure(reason)
		web.LogInfo(r, "session cookie rejected", "reason", reason, "error", err)
	}
	return claims, state
}

func (g *Gate) allow(w http.ResponseWriter, r *http.Request, state session.State, next http.Handler) {
	g.Metrics.GateDecision(state.String(), actionAllow)
	web.LogDebug(r, "gate allow", "state", state.String())
	next.ServeHTTP(w, r)
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, state session.State, to, action string) {
	g.Metrics.GateDecision(state.String(), action)
	web.LogInfo(r, "gate redirect", "state", state.String(), "to", to)
	web.SeeOther(w, r, to)
}
