// client.go
//
// Sender interface and the HTTP client that delivers document processing
// jobs to the automation webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender delivers one job. Implemented by Client; wrapped by Queue.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// Job asks the webhook to process the document at URL.
type Job struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	RequestedBy string    `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// maxErrorBody bounds how much of a failed response is kept for the log.
const maxErrorBody = 512

// Client POSTs {"url": ...} to a fixed webhook endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the default 30s-timeout http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a Client posting to endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers job. Any non-2xx response is an error carrying the status and
// the webhook's message (or a prefix of its raw body).
func (c *Client) Send(ctx context.Context, job Job) error {
	payload, err := json.Marshal(struct {
		URL string `json:"url"`
	}{job.URL})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if job.ID != "" {
		req.Header.Set("X-Adminity-Job-ID", job.ID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook failed with status %d: %s", resp.StatusCode, errorDetail(body))
	}
	return nil
}

// errorDetail prefers a JSON "message" field and falls back to the raw text.
func errorDetail(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}
