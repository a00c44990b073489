// cookie.go -- Session cookie lifecycle.
//
// CookieStore binds the Codec to the adminity_session cookie. Create and
// Destroy build the cookie through the same constructor so the attributes a
// browser matches on (name, path, secure) can never drift between them.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "adminity_session"

// State classifies the session cookie on a single request.
type State int

const (
	// Absent means no cookie, or an empty one (the trace left by Destroy).
	Absent State = iota
	// Valid means the cookie holds a verified, unexpired, unrevoked token.
	Valid
	// Invalid means a non-empty cookie failed verification.
	Invalid
)

func (s State) String() string {
	switch s {
	case Valid:
		return "authenticated"
	case Invalid:
		return "invalid_token"
	default:
		return "unauthenticated"
	}
}

// Denylist records revoked token IDs until their natural expiry.
// Satisfied by *store.RedisDenylist.
type Denylist interface {
	// Revoke marks tokenID as unusable until the given time.
	Revoke(ctx context.Context, tokenID string, until time.Time) error

	// IsRevoked reports whether tokenID has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// CookieStore reads, writes and clears the session cookie.
type CookieStore struct {
	codec    *Codec
	secure   bool
	denylist Denylist
}

// StoreOption configures a CookieStore at construction.
type StoreOption func(*CookieStore)

// WithDenylist enables server-side revocation checks on every Lookup.
func WithDenylist(d Denylist) StoreOption {
	return func(s *CookieStore) { s.denylist = d }
}

// NewCookieStore returns a CookieStore. secure sets the Secure attribute and
// should be true only in production, where the console is served over TLS.
func NewCookieStore(codec *Codec, secure bool, opts ...StoreOption) *CookieStore {
	s := &CookieStore{codec: codec, secure: secure}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Secure reports whether cookies are issued with the Secure attribute.
func (s *CookieStore) Secure() bool {
	return s.secure
}

// Denylist returns the configured denylist, or nil when revocation is disabled.
func (s *CookieStore) Denylist() Denylist {
	return s.denylist
}

// Create issues a token for the principal and sets it as the session cookie.
// The cookie expires at the same instant as the token.
func (s *CookieStore) Create(w http.ResponseWriter, subjectID, displayName string, role Role) (Claims, error) {
	token, claims, err := s.codec.Encode(Claims{
		SubjectID:   subjectID,
		DisplayName: displayName,
		Role:        role,
	})
	if err != nil {
		return Claims{}, fmt.Errorf("creating session: %w", err)
	}
	http.SetCookie(w, s.cookie(token, claims.ExpiresAt))
	return claims, nil
}

// Lookup classifies the request's session cookie.
// The error is non-nil only for Invalid and explains why.
func (s *CookieStore) Lookup(r *http.Request) (*Claims, State, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, Absent, nil
	}

	claims, err := s.parse(c.Value)
	if err != nil {
		return nil, Invalid, err
	}

	if s.denylist != nil && claims.TokenID != "" {
		revoked, err := s.denylist.IsRevoked(r.Context(), claims.TokenID)
		if err != nil {
			// Fail closed: an unreadable denylist cannot vouch for the token.
			return nil, Invalid, fmt.Errorf("%w: denylist lookup: %v", ErrRevoked, err)
		}
		if revoked {
			return nil, Invalid, ErrRevoked
		}
	}
	return claims, Valid, nil
}

// Read returns the verified session claims, or nil when there is no usable session.
// Verification failures are swallowed.
func (s *CookieStore) Read(r *http.Request) *Claims {
	claims, state, _ := s.Lookup(r)
	if state != Valid {
		return nil
	}
	return claims
}

// Destroy overwrites the session cookie with an empty, already-expired one.
func (s *CookieStore) Destroy(w http.ResponseWriter) {
	c := s.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// cookie is the one place the session cookie's attributes are defined.
func (s *CookieStore) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
}

// parse runs the codec with panics converted to ErrMalformed.
func (s *CookieStore) parse(token string) (claims *Claims, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			claims, err = nil, fmt.Errorf("%w: panic during decode: %v", ErrMalformed, rec)
		}
	}()
	return s.codec.Parse(token)
}
