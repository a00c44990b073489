package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return body
}

func TestError(t *testing.T) {
	t.Run("details are included when present", func(t *testing.T) {
		w := httptest.NewRecorder()
		details := FieldErrors{}
		details.Add("email", "Invalid email address.")
		BadRequest(w, httptest.NewRequest(http.MethodPost, "/login", nil), "Invalid fields.", details)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != "Invalid fields." {
			t.Errorf("error: got %v", body["error"])
		}
		email := body["details"].(map[string]any)["email"].([]any)
		if len(email) != 1 || email[0] != "Invalid email address." {
			t.Errorf("details.email: got %v", email)
		}
	})

	t.Run("details are omitted when nil", func(t *testing.T) {
		w := httptest.NewRecorder()
		Error(w, httptest.NewRequest(http.MethodPost, "/login", nil), http.StatusUnauthorized, "Invalid credentials.", nil)
		body := decodeBody(t, w)
		if _, ok := body["details"]; ok {
			t.Error("expected no details key")
		}
	})
}

func TestInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	InternalServerError(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil), errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status: expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("internal error text leaked into response")
	}
}

func TestSeeOther(t *testing.T) {
	w := httptest.NewRecorder()
	SeeOther(w, httptest.NewRequest(http.MethodPost, "/login", nil), "/dashboard")
	if w.Code != http.StatusSeeOther {
		t.Errorf("status: expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location: expected /dashboard, got %q", loc)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes object", func(t *testing.T) {
		var v struct{ URL string `json:"url"` }
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.com/a.pdf"}`))
		if err := DecodeJSON(httptest.NewRecorder(), r, &v); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if v.URL != "https://example.com/a.pdf" {
			t.Errorf("URL: got %q", v.URL)
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		var v map[string]string
		big := `{"a":"` + strings.Repeat("x", 2<<20) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		if err := DecodeJSON(httptest.NewRecorder(), r, &v); err == nil {
			t.Error("expected error for oversized body")
		}
	})
}
