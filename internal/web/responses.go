// responses.go -- JSON response helpers.
//
// Error bodies use {"error": msg} with an optional "details" object of
// per-field messages. Messages are fixed strings; internal error text is only
// ever logged.
package web

import (
	"encoding/json"
	"net/http"
)

// FieldErrors maps a form field name to its validation messages.
type FieldErrors map[string][]string

// Add appends msg to field's messages.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Error body shape shared by every failing endpoint.
type errorBody struct {
	Error   string      `json:"error"`
	Details FieldErrors `json:"details,omitempty"`
}

// JSON writes v as the response body with the given status.
// An encoding failure is logged; the status line has already been sent by then.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LogError(r, "encoding response", "error", err)
	}
}

// Error writes {"error": message, "details": details}. details may be nil.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, details FieldErrors) {
	JSON(w, r, status, errorBody{Error: message, Details: details})
}

// InternalServerError logs err and writes a generic 500.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	LogError(r, "internal server error", "error", err)
	Error(w, r, http.StatusInternalServerError, "An unexpected error occurred. Please try again.", nil)
}

// BadRequest writes a 400 with field details. Use for input validation failures.
func BadRequest(w http.ResponseWriter, r *http.Request, message string, details FieldErrors) {
	Error(w, r, http.StatusBadRequest, message, details)
}

// NotFound writes a generic 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusNotFound, "Not found.", nil)
}

// Conflict writes a 409 with the given message.
func Conflict(w http.ResponseWriter, r *http.Request, message string, details FieldErrors) {
	Error(w, r, http.StatusConflict, message, details)
}

// ServiceUnavailable writes a 503 for features whose backing service is not configured.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, message, nil)
}

// SeeOther redirects with 303 so the follow-up request is always a GET.
func SeeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// DecodeJSON decodes the request body into v. The body is capped at 1 MiB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
