// codec.go -- Signed session tokens.
//
// A session token is an HS256 JWT carrying the administrator's identity and
// an absolute expiry exactly SessionTTL after issuance. The codec holds the
// only copy of the signing secret; it is immutable after NewCodec and safe
// for concurrent use.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed lifetime of every session token.
const SessionTTL = time.Hour

// FallbackSecret signs tokens when JWT_SECRET_KEY is unset.
// Anyone who knows it can forge sessions; config logs a warning when it is in use.
const FallbackSecret = "default-secret-key-for-adminity-app"

// Role is the closed set of administrator roles a session may carry.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseRole converts s to a Role, returning false for anything outside the enumeration.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Verification failure reasons. Parse wraps the underlying jwt error with one of these.
var (
	ErrMalformed     = errors.New("session: malformed token")
	ErrSignature     = errors.New("session: invalid signature")
	ErrExpired       = errors.New("session: token expired")
	ErrInvalidClaims = errors.New("session: invalid claims")
	ErrRevoked       = errors.New("session: token revoked")
)

// Reason maps a Parse/Lookup error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSignature):
		return "signature"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	default:
		return "claims"
	}
}

// Claims is the identity and expiry data signed into a session token.
type Claims struct {
	SubjectID   string
	DisplayName string
	Role        Role
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// tokenClaims is the JWT wire shape of Claims.
type tokenClaims struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with a single HMAC secret.
type Codec struct {
	secret  []byte
	now     func() time.Time
	tokenID func() (string, error)
	parser  *jwt.Parser
}

// CodecOption configures a Codec at construction.
type CodecOption func(*Codec)

// WithClock replaces time.Now; used by tests to pin issuance and verification times.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// WithTokenIDs replaces the random v4 UUID token ID generator.
func WithTokenIDs(next func() (string, error)) CodecOption {
	return func(c *Codec) { c.tokenID = next }
}

func newTokenID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewCodec returns a Codec signing with secret.
// An empty secret is a startup error, not a runtime one.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: signing secret must not be empty")
	}
	c := &Codec{
		secret:  append([]byte(nil), secret...),
		now:     time.Now,
		tokenID: newTokenID,
	}
	for _, opt := range opts {
		opt(c)
	}
	// No leeway: a token is valid strictly before exp. iat is not compared to
	// the local clock so that skew between instances cannot reject fresh tokens.
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Encode stamps claims with IssuedAt, ExpiresAt (IssuedAt + SessionTTL) and a
// token ID if none is set, then signs them. Returns the token and the stamped claims.
func (c *Codec) Encode(claims Claims) (string, Claims, error) {
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = issuedAt
	claims.ExpiresAt = issuedAt.Add(SessionTTL)
	if claims.TokenID == "" {
		id, err := c.tokenID()
		if err != nil {
			return "", Claims{}, fmt.Errorf("generating token id: %w", err)
		}
		claims.TokenID = id
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name: claims.DisplayName,
		Role: claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.SubjectID,
			ID:        claims.TokenID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm and expiry, then checks the claims are
// semantically usable (non-empty subject, enumerated role).
// Errors wrap one of ErrMalformed, ErrSignature, ErrExpired or ErrInvalidClaims.
func (c *Codec) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	var tc tokenClaims
	_, err := c.parser.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrSignature, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
		}
	}

	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}
	if !tc.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, tc.Role)
	}

	claims := &Claims{
		SubjectID:   tc.Subject,
		DisplayName: tc.Name,
		Role:        tc.Role,
		TokenID:     tc.ID,
		ExpiresAt:   tc.ExpiresAt.Time.UTC(),
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// Decode returns the verified claims, or nil for any invalid input.
// Never panics; callers treat nil as "not authenticated".
func (c *Codec) Decode(token string) (claims *Claims) {
	defer func() {
		if recover() != nil {
			claims = nil
		}
	}()
	claims, err := c.Parse(token)
	if err != nil {
		return nil
	}
	return claims
}
