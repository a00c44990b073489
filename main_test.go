// main_test.go
//
// Level 3 smoke tests
// chi wiring via httptest.NewServer with in-memory mock stores.
// Catches middleware ordering, route grouping, and real HTTP cookie/header behavior
// that httptest.NewRecorder cannot exercise.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/console"
	"github.com/MGallo-Code/adminity/internal/metrics"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/testutil"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Helpers ---

const smokeEmail = "smoke@example.com"
const smokePassword = "smokepassword1"

type smokeServer struct {
	*httptest.Server
	store    *testutil.MockStore
	changes  *testutil.MockChanges
	client   *http.Client
	registry *prometheus.Registry
}

// newSmokeServer serves buildRouter over mocks seeded with one superadmin.
// The client keeps cookies and does not follow redirects.
func newSmokeServer(t *testing.T) *smokeServer {
	t.Helper()
	hash, err := auth.HashPassword(smokePassword)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	ms := testutil.NewMockStore(&store.Admin{
		ID:           uuid.Must(uuid.NewV7()),
		Name:         "Smoke Admin",
		Email:        smokeEmail,
		Role:         string(session.RoleSuperAdmin),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	changes := &testutil.MockChanges{}

	codec, err := session.NewCodec([]byte("smoke-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	sessions := session.NewCookieStore(codec, false)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	ah := &auth.AuthHandler{Admins: ms, Sessions: sessions, Limiter: &testutil.MockLimiter{}, Metrics: m}
	ch := &console.Handler{
		Records: ms,
		Changes: changes,
		Checks:  map[string]console.HealthCheck{"postgres": ms.CheckHealth},
	}
	gate := &auth.Gate{Sessions: sessions, Metrics: m}

	srv := httptest.NewServer(buildRouter(ah, ch, gate))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &smokeServer{Server: srv, store: ms, changes: changes, client: client, registry: reg}
}

func (s *smokeServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := s.client.Get(s.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *smokeServer) post(t *testing.T, path, contentType, body string) *http.Response {
	t.Helper()
	resp, err := s.client.Post(s.URL+path, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// login posts the form the login page submits and expects a 303 to /dashboard.
func (s *smokeServer) login(t *testing.T) {
	t.Helper()
	form := url.Values{"email": {smokeEmail}, "password": {smokePassword}}
	resp := s.post(t, "/login", "application/x-www-form-urlencoded", form.Encode())
	assertRedirect(t, resp, "/dashboard")
}

func assertRedirect(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status: expected 303, got %d (%s)", resp.StatusCode, body)
	}
	if loc := resp.Header.Get("Location"); loc != want {
		t.Fatalf("Location: expected %q, got %q", want, loc)
	}
}

// --- Smoke tests ---

// TestSmoke_Health verifies /healthz bypasses the gate.
func TestSmoke_Health(t *testing.T) {
	s := newSmokeServer(t)
	resp := s.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["postgres"] != "ok" {
		t.Errorf(`postgres: expected "ok", got %q`, body["postgres"])
	}

	s.store.HealthErr = errors.New("down")
	if resp := s.get(t, "/healthz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status with postgres down: expected 503, got %d", resp.StatusCode)
	}
}

// TestSmoke_Metrics verifies the console listener gates /metrics and the
// metrics listener exposes the gate counter.
func TestSmoke_Metrics(t *testing.T) {
	s := newSmokeServer(t)
	assertRedirect(t, s.get(t, "/metrics"), "/login")

	ms := httptest.NewServer(buildMetricsRouter(s.registry))
	t.Cleanup(ms.Close)
	resp, err := http.Get(ms.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `adminity_gate_decisions_total{action="redirect_login"`) {
		t.Errorf("gate decision counter missing from metrics listener:\n%s", body)
	}
}

// TestSmoke_ProtectedWithoutSession verifies the gate sits in front of the console routes.
func TestSmoke_ProtectedWithoutSession(t *testing.T) {
	s := newSmokeServer(t)
	for _, path := range []string{"/", "/dashboard", "/dashboard/admins", "/dashboard/users/watch"} {
		t.Run(path, func(t *testing.T) {
			assertRedirect(t, s.get(t, path), "/login")
		})
	}
}

// TestSmoke_LoginPage verifies the public page renders without a session.
func TestSmoke_LoginPage(t *testing.T) {
	s := newSmokeServer(t)
	resp := s.get(t, "/login")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: expected text/html, got %q", ct)
	}
}

// TestSmoke_WrongPassword verifies a failed login stays on the page with a 401.
func TestSmoke_WrongPassword(t *testing.T) {
	s := newSmokeServer(t)
	resp := s.post(t, "/login", "application/json", `{"email":"`+smokeEmail+`","password":"wrong-password"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: expected 401, got %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			t.Error("session cookie set on failed login")
		}
	}
}

// TestSmoke_FullRoundTrip verifies login -> console -> logout over real HTTP.
// Exercises cookie passing, gate ordering and the JSON-only write rule end-to-end.
func TestSmoke_FullRoundTrip(t *testing.T) {
	s := newSmokeServer(t)
	s.login(t)

	// Authenticated visitors are sent away from the login page.
	assertRedirect(t, s.get(t, "/login"), "/dashboard")

	resp := s.get(t, "/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", resp.StatusCode)
	}
	var counts map[string]*int64
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("decoding dashboard: %v", err)
	}
	if n := counts["admins"]; n == nil || *n != 1 {
		t.Errorf("admins count: expected 1, got %v", n)
	}

	// Writes must be JSON.
	resp = s.post(t, "/dashboard/users", "application/x-www-form-urlencoded", "name=Grace")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("form write: expected 415, got %d", resp.StatusCode)
	}
	resp = s.post(t, "/dashboard/users", "application/json", `{"name":"Grace Hopper","phone":"555-0100","userType":1}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("create user: expected 201, got %d", resp.StatusCode)
	}
	if got := s.changes.PublishedSnapshot(); len(got) != 1 || got[0] != store.CollectionUsers {
		t.Errorf("published: expected [users], got %v", got)
	}

	// Logout clears the cookie; the console is closed again.
	resp = s.post(t, "/logout", "application/x-www-form-urlencoded", "")
	assertRedirect(t, resp, "/login")
	assertRedirect(t, s.get(t, "/dashboard"), "/login")
}

// TestSmoke_WatchStream verifies watch routes are mounted outside the request timeout
// and stream an initial snapshot to an authenticated client.
func TestSmoke_WatchStream(t *testing.T) {
	s := newSmokeServer(t)
	s.login(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/dashboard/admins/watch", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("GET watch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.StatusCode)
	}
	buf := make([]byte, len("event: snapshot"))
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(buf) != "event: snapshot" {
		t.Errorf("first frame: expected snapshot event, got %q", buf)
	}
}
