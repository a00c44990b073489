// google.go -- Administrator sign-in with a Google account.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider signs administrators in through Google. Only the verified
// email is used to match an existing admins row; Google never creates accounts.
type GoogleProvider struct {
	oauth *oauth2.Config
	ids   *oidc.IDTokenVerifier
}

// googleIDClaims is the subset of the Google ID token the console reads.
type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewGoogleProvider runs OIDC discovery against accounts.google.com, so it
// fails at startup when Google is unreachable.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	return newOIDCProvider(ctx, googleIssuer, clientID, clientSecret, redirectURL)
}

func newOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("google sign-in discovery at %s: %w", issuer, err)
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     discovered.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	return &GoogleProvider{
		oauth: cfg,
		ids:   discovered.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

// AuthCodeURL is where /login?provider=google sends the browser.
func (p *GoogleProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
	)
}

// Exchange redeems the callback code and returns the identity from the
// verified ID token. The access token is discarded.
func (p *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("google token response carried no id_token")
	}
	idToken, err := p.ids.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("google id_token rejected: %w", err)
	}

	var c googleIDClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("reading google id_token claims: %w", err)
	}
	return &Claims{Sub: c.Sub, Email: c.Email, EmailVerified: c.EmailVerified, Name: c.Name}, nil
}
