// sso.go -- Administrator sign-in through an OAuth/OIDC provider.
//
// Both legs run on /login, the only public path: ?provider=<name> starts the
// flow, the provider's redirect back carries ?state= and ?code= (or ?error=).
// SSO never creates accounts; the verified email must belong to an existing
// administrator.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MGallo-Code/adminity/internal/oauth"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
)

const (
	ssoStateCookie = "adminity_oauth_state"
	ssoStateMaxAge = 600 // 10 minutes
	ssoFailurePath = LoginPath + "?error=sso"
)

var errSSODenied = errors.New("sso sign-in denied")

// ssoState is the payload stored in the state cookie during the round trip.
type ssoState struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// startSSO generates state + PKCE, stores them in a short-lived HttpOnly
// cookie, and redirects the browser to the provider's consent page.
func (h *AuthHandler) startSSO(w http.ResponseWriter, r *http.Request, name string) {
	provider, ok := h.OAuthProviders[name]
	if !ok {
		web.LogWarn(r, "sso: unknown provider", "provider", name)
		web.SeeOther(w, r, ssoFailurePath)
		return
	}

	req, err := oauth.NewAuthRequest()
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}

	value, err := encodeSSOState(ssoState{Provider: provider.Name(), State: req.State, Verifier: req.Verifier})
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	http.SetCookie(w, h.ssoCookie(value, ssoStateMaxAge))
	http.Redirect(w, r, provider.AuthCodeURL(req.State, req.Challenge), http.StatusFound)
}

// finishSSO handles the provider's redirect back to /login.
func (h *AuthHandler) finishSSO(w http.ResponseWriter, r *http.Request) {
	// The state cookie is single use whatever the outcome.
	http.SetCookie(w, h.ssoCookie("", -1))

	admin, role, err := h.ssoAdmin(r)
	if err != nil {
		web.LogWarn(r, "sso: sign-in failed", "error", err)
		h.Metrics.LoginAttempt("sso_failed")
		web.SeeOther(w, r, ssoFailurePath)
		return
	}

	if _, err := h.Sessions.Create(w, admin.ID.String(), admin.Name, role); err != nil {
		web.LogError(r, "sso: session creation failed", "admin_id", admin.ID, "error", err)
		h.Metrics.LoginAttempt("error")
		web.SeeOther(w, r, ssoFailurePath)
		return
	}

	web.LogInfo(r, "admin logged in", "admin_id", admin.ID, "role", role, "method", "sso")
	h.Metrics.LoginAttempt("sso_success")
	web.SeeOther(w, r, HomePath)
}

// ssoAdmin validates the callback and resolves it to an administrator record.
func (h *AuthHandler) ssoAdmin(r *http.Request) (*store.Admin, session.Role, error) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, "", fmt.Errorf("%w: provider returned %q", errSSODenied, e)
	}

	st, err := h.readSSOState(r)
	if err != nil {
		return nil, "", err
	}

	// Constant-time comparison prevents timing oracle on state value.
	if st.State == "" || subtle.ConstantTimeCompare([]byte(st.State), []byte(q.Get("state"))) != 1 {
		return nil, "", errors.New("state mismatch")
	}

	provider, ok := h.OAuthProviders[st.Provider]
	if !ok {
		return nil, "", fmt.Errorf("provider %q not configured", st.Provider)
	}
	claims, err := provider.Exchange(r.Context(), q.Get("code"), st.Verifier)
	if err != nil {
		return nil, "", fmt.Errorf("exchanging code: %w", err)
	}
	if !claims.EmailVerified || claims.Email == "" {
		return nil, "", fmt.Errorf("%w: email not verified", errSSODenied)
	}

	admin, err := h.Admins.GetAdminByEmail(r.Context(), strings.ToLower(claims.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: no administrator for verified email", errSSODenied)
	}
	if err != nil {
		return nil, "", fmt.Errorf("looking up admin: %w", err)
	}
	role, ok := session.ParseRole(admin.Role)
	if !ok {
		return nil, "", fmt.Errorf("%w: admin %s has unknown role %q", errSSODenied, admin.ID, admin.Role)
	}
	return admin, role, nil
}

// encodeSSOState produces the state cookie value read back by readSSOState.
func encodeSSOState(st ssoState) (string, error) {
	payload, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encoding state cookie: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// readSSOState decodes the state cookie set by startSSO.
func (h *AuthHandler) readSSOState(r *http.Request) (*ssoState, error) {
	c, err := r.Cookie(ssoStateCookie)
	if err != nil {
		return nil, fmt.Errorf("missing state cookie: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding state cookie: %w", err)
	}
	var st ssoState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parsing state cookie: %w", err)
	}
	return &st, nil
}

// ssoCookie builds the state cookie; maxAge < 0 deletes it.
func (h *AuthHandler) ssoCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     ssoStateCookie,
		Value:    value,
		Path:     LoginPath,
		HttpOnly: true,
		Secure:   h.Sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
