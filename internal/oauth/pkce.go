// pkce.go -- State and PKCE parameter generation for the authorization request.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// AuthRequest is the per-attempt secret material for one authorization round trip.
// State and Verifier stay server-side (in a short-lived cookie); Challenge goes to the provider.
type AuthRequest struct {
	State     string
	Verifier  string
	Challenge string
}

// NewAuthRequest generates a random state and PKCE verifier with its S256 challenge.
func NewAuthRequest() (AuthRequest, error) {
	var stateBytes, verifierBytes [32]byte
	if _, err := rand.Read(stateBytes[:]); err != nil {
		return AuthRequest{}, fmt.Errorf("generating oauth state: %w", err)
	}
	if _, err := rand.Read(verifierBytes[:]); err != nil {
		return AuthRequest{}, fmt.Errorf("generating pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes[:])
	return AuthRequest{
		State:     base64.RawURLEncoding.EncodeToString(stateBytes[:]),
		Verifier:  verifier,
		Challenge: S256Challenge(verifier),
	}, nil
}

// S256Challenge derives the PKCE code_challenge for verifier (RFC 7636 section 4.2).
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
