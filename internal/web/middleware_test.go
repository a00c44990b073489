package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, ct := range []string{"application/json", "application/json; charset=utf-8"} {
		t.Run("accepts "+ct, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/dashboard/users", strings.NewReader(`{}`))
			r.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			RequireJSON(ok).ServeHTTP(w, r)
			if w.Code != http.StatusNoContent {
				t.Errorf("status: expected 204, got %d", w.Code)
			}
		})
	}

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded", "multipart/form-data; boundary=x"} {
		t.Run("rejects "+ct, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/dashboard/users", strings.NewReader(`{}`))
			if ct != "" {
				r.Header.Set("Content-Type", ct)
			}
			w := httptest.NewRecorder()
			RequireJSON(ok).ServeHTTP(w, r)
			if w.Code != http.StatusUnsupportedMediaType {
				t.Errorf("status: expected 415, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), `"error":"Content-Type must be application/json."`) {
				t.Errorf("unexpected body %q", w.Body.String())
			}
		})
	}
}
