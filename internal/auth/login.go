// login.go -- Login and logout actions.
//
// Login and Logout carry no HTTP encoding of their own: they return a
// LoginResult that handler.go writes out. The only response side effect
// inside Login is the session cookie set on success.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MGallo-Code/adminity/internal/captcha"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
)

// Failure messages returned to the client. Authentication failures share one
// message so responses never reveal whether an email is registered.
const (
	MsgInvalidFields      = "Invalid fields."
	MsgInvalidCredentials = "Invalid credentials."
	MsgTooManyAttempts    = "Too many login attempts. Please try again later."
	MsgUnexpected         = "An unexpected error occurred. Please try again."
	MsgSessionFailed      = "Could not start session."
	MsgCaptchaFailed      = "Captcha verification failed."
)

// Credentials is the untrusted login form input.
type Credentials struct {
	Email        string
	Password     string
	CaptchaToken string
	RemoteIP     string
}

// LoginResult is either Redirect or Failure.
type LoginResult interface {
	loginResult()
}

// Redirect sends the browser to Path.
type Redirect struct {
	Path string
}

// Failure is a rejected login with the status and body to report.
type Failure struct {
	Status  int
	Message string
	Details web.FieldErrors
}

func (Redirect) loginResult() {}
func (Failure) loginResult()  {}

func rateKey(email string) string {
	return "login:" + strings.ToLower(email)
}

// Login authenticates creds against the administrator records and, on
// success, sets the session cookie on w.
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, creds Credentials) LoginResult {
	email := strings.TrimSpace(creds.Email)

	details := web.FieldErrors{}
	if !ValidEmail(email) {
		details.Add("email", MsgInvalidEmail)
	}
	if creds.Password == "" {
		details.Add("password", MsgPasswordRequired)
	}
	if len(details) > 0 {
		h.Metrics.LoginAttempt("invalid_fields")
		return Failure{Status: http.StatusBadRequest, Message: MsgInvalidFields, Details: details}
	}

	if h.Captcha != nil {
		if err := h.Captcha.Verify(ctx, creds.CaptchaToken, creds.RemoteIP); err != nil {
			if errors.Is(err, captcha.ErrRejected) {
				slog.InfoContext(ctx, "login: captcha rejected", "error", err)
			} else {
				slog.WarnContext(ctx, "login: captcha verification unavailable", "error", err)
			}
			h.Metrics.LoginAttempt("captcha")
			return Failure{
				Status:  http.StatusBadRequest,
				Message: MsgInvalidFields,
				Details: web.FieldErrors{"captcha": {MsgCaptchaFailed}},
			}
		}
	}

	if h.Limiter != nil {
		err := h.Limiter.Allow(ctx, rateKey(email), h.LoginRate)
		if errors.Is(err, store.ErrRateLimitExceeded) {
			slog.WarnContext(ctx, "login: rate limit exceeded", "email", email)
			h.Metrics.LoginAttempt("rate_limited")
			return Failure{Status: http.StatusTooManyRequests, Message: MsgTooManyAttempts}
		}
		if err != nil {
			// Fail open: a Redis outage must not lock every administrator out.
			slog.ErrorContext(ctx, "login: rate limiter unavailable", "error", err)
		}
	}

	admin, err := h.Admins.GetAdminByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		burnPasswordCheck(creds.Password)
		h.Metrics.LoginAttempt("invalid_credentials")
		return Failure{Status: http.StatusUnauthorized, Message: MsgInvalidCredentials}
	}
	if err != nil {
		slog.ErrorContext(ctx, "login: admin lookup failed", "error", err)
		h.Metrics.LoginAttempt("error")
		return Failure{Status: http.StatusInternalServerError, Message: MsgUnexpected}
	}

	role, ok := session.ParseRole(admin.Role)
	if !ok {
		slog.ErrorContext(ctx, "login: admin record has unknown role", "admin_id", admin.ID, "role", admin.Role)
		h.Metrics.LoginAttempt("invalid_credentials")
		return Failure{Status: http.StatusUnauthorized, Message: MsgInvalidCredentials}
	}

	match, err := VerifyPassword(creds.Password, admin.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "login: password verification failed", "admin_id", admin.ID, "error", err)
		h.Metrics.LoginAttempt("error")
		return Failure{Status: http.StatusInternalServerError, Message: MsgUnexpected}
	}
	if !match {
		h.Metrics.LoginAttempt("invalid_credentials")
		return Failure{Status: http.StatusUnauthorized, Message: MsgInvalidCredentials}
	}

	claims, err := h.Sessions.Create(w, admin.ID.String(), admin.Name, role)
	if err != nil {
		slog.ErrorContext(ctx, "login: session creation failed", "admin_id", admin.ID, "error", err)
		h.Metrics.LoginAttempt("error")
		return Failure{Status: http.StatusInternalServerError, Message: MsgSessionFailed}
	}

	if h.Limiter != nil {
		if err := h.Limiter.Reset(ctx, rateKey(email)); err != nil {
			slog.WarnContext(ctx, "login: rate limit reset failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "admin logged in", "admin_id", admin.ID, "role", role, "token_id", claims.TokenID)
	h.Metrics.LoginAttempt("success")
	return Redirect{Path: HomePath}
}

// Logout revokes the current token when revocation is enabled, clears the
// session cookie, and always redirects to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) Redirect {
	if dl := h.Sessions.Denylist(); dl != nil {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			claims = h.Sessions.Read(r)
		}
		if claims != nil && claims.TokenID != "" {
			if err := dl.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
				web.LogWarn(r, "logout: revoking session failed", "error", err)
			}
		}
	}
	h.Sessions.Destroy(w)
	return Redirect{Path: LoginPath}
}
