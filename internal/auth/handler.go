// handler.go -- HTTP handlers for /login and /logout.
package auth

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"strings"

	"github.com/MGallo-Code/adminity/internal/metrics"
	"github.com/MGallo-Code/adminity/internal/oauth"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
)

// Fixed console paths.
const (
	LoginPath = "/login"
	HomePath  = "/dashboard"
)

// AdminFinder looks up administrator records by email.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go convention.
type AdminFinder interface {
	// GetAdminByEmail returns store.ErrNotFound when no administrator has the email.
	GetAdminByEmail(ctx context.Context, email string) (*store.Admin, error)
}

// RateLimiter checks and records rate limit state for a given key and policy.
// Satisfied by *store.RedisRateLimiter.
type RateLimiter interface {
	// Allow records the attempt. Returns store.ErrRateLimitExceeded when locked out.
	Allow(ctx context.Context, key string, policy store.RateLimit) error

	// Reset clears the key's counter and lockout.
	Reset(ctx context.Context, key string) error
}

// CaptchaVerifier validates a captcha token. Satisfied by *captcha.TurnstileVerifier.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// AuthHandler holds dependencies for the login and logout endpoints.
// Limiter, Captcha, OAuthProviders and Metrics are optional.
type AuthHandler struct {
	Admins   AdminFinder
	Sessions *session.CookieStore

	Limiter   RateLimiter
	LoginRate store.RateLimit

	Captcha        CaptchaVerifier
	CaptchaSiteKey string

	// OAuthProviders maps ?provider= values to configured identity providers.
	OAuthProviders map[string]oauth.Provider

	Metrics *metrics.Metrics
}

// loginInput is the JSON shape of POST /login.
type loginInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

// LoginPage handles GET /login. The same path carries both legs of SSO:
// ?provider= starts it and the provider's redirect back carries ?state=.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("provider"):
		h.startSSO(w, r, q.Get("provider"))
		return
	case q.Has("state"):
		h.finishSSO(w, r)
		return
	}

	data := loginPageData{
		CaptchaSiteKey: h.CaptchaSiteKey,
		Google:         h.OAuthProviders["google"] != nil,
	}
	if q.Get("error") == "sso" {
		data.Error = "Sign-in with Google failed. Use an administrator account or your password."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginTemplate.Execute(w, data); err != nil {
		web.LogError(r, "rendering login page", "error", err)
	}
}

// LoginSubmit handles POST /login with a JSON or form-encoded body.
func (h *AuthHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := web.DecodeJSON(w, r, &in); err != nil {
			web.LogDebug(r, "login: undecodable body", "error", err)
			web.BadRequest(w, r, MsgInvalidFields, nil)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			web.BadRequest(w, r, MsgInvalidFields, nil)
			return
		}
		in = loginInput{
			Email:        r.PostForm.Get("email"),
			Password:     r.PostForm.Get("password"),
			CaptchaToken: r.PostForm.Get("cf-turnstile-response"),
		}
	}

	res := h.Login(r.Context(), w, Credentials{
		Email:        in.Email,
		Password:     in.Password,
		CaptchaToken: in.CaptchaToken,
		RemoteIP:     clientIP(r),
	})
	writeResult(w, r, res)
}

// LogoutSubmit handles POST /logout.
func (h *AuthHandler) LogoutSubmit(w http.ResponseWriter, r *http.Request) {
	web.LogInfo(r, "admin logged out")
	writeResult(w, r, h.Logout(w, r))
}

// writeResult encodes a LoginResult: 303 for Redirect, JSON error body for Failure.
func writeResult(w http.ResponseWriter, r *http.Request, res LoginResult) {
	switch res := res.(type) {
	case Redirect:
		web.SeeOther(w, r, res.Path)
	case Failure:
		web.Error(w, r, res.Status, res.Message, res.Details)
	}
}

// clientIP strips the port from RemoteAddr (already rewritten by chi's RealIP).
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type loginPageData struct {
	Error          string
	CaptchaSiteKey string
	Google         bool
}

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Adminity | Sign in</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .CaptchaSiteKey}}<script src="https://challenges.cloudflare.com/turnstile/v0/api.js" async defer></script>{{end}}
</head>
<body>
<main>
<h1>Adminity</h1>
<p>Sign in to the admin console.</p>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form id="login" method="post" action="/login">
  <label>Email <input type="email" name="email" autocomplete="username" required></label>
  <label>Password <input type="password" name="password" autocomplete="current-password" required></label>
  {{if .CaptchaSiteKey}}<div class="cf-turnstile" data-sitekey="{{.CaptchaSiteKey}}"></div>{{end}}
  <p id="error" role="alert" hidden></p>
  <button type="submit">Sign in</button>
</form>
{{if .Google}}<p><a href="/login?provider=google">Sign in with Google</a></p>{{end}}
</main>
<script>
document.getElementById("login").addEventListener("submit", async (e) => {
  e.preventDefault();
  const res = await fetch("/login", {method: "POST", body: new URLSearchParams(new FormData(e.target))});
  if (res.redirected) { window.location = res.url; return; }
  const body = await res.json().catch(() => ({}));
  const details = Object.values(body.details || {}).flat();
  const el = document.getElementById("error");
  el.textContent = [body.error, ...details].filter(Boolean).join(" ");
  el.hidden = false;
});
</script>
</body>
</html>
`))
