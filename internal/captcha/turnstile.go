// turnstile.go -- Cloudflare Turnstile CAPTCHA verifier.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const turnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrRejected is returned by Verify when Cloudflare answers but refuses the token.
// Any other error means the verdict could not be obtained.
var ErrRejected = errors.New("captcha token rejected")

// TurnstileVerifier verifies Cloudflare Turnstile tokens against the siteverify API.
type TurnstileVerifier struct {
	secret     string
	endpoint   string
	httpClient *http.Client
}

// Option configures a TurnstileVerifier.
type Option func(*TurnstileVerifier)

// WithEndpoint overrides the siteverify URL.
func WithEndpoint(endpoint string) Option {
	return func(v *TurnstileVerifier) { v.endpoint = endpoint }
}

// NewTurnstileVerifier returns a TurnstileVerifier using the given secret key.
// Uses a 5s timeout on the outbound HTTP client.
func NewTurnstileVerifier(secret string, opts ...Option) *TurnstileVerifier {
	v := &TurnstileVerifier{
		secret:     secret,
		endpoint:   turnstileURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token against Cloudflare's siteverify endpoint.
// An empty token is rejected without a network call.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrRejected)
	}
	body := url.Values{
		"secret":   {v.secret},
		"response": {token},
		"remoteip": {remoteIP},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return fmt.Errorf("turnstile: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("turnstile: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("turnstile: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("turnstile: decoding response: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("%w: %v", ErrRejected, result.ErrorCodes)
	}
	return nil
}
