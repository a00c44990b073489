// middleware.go -- Request guards shared by the console routes.
package web

import (
	"mime"
	"net/http"
)

// RequireJSON rejects requests whose body is not declared as JSON with 415.
// Every cookie-authenticated console write sits behind it; cross-site forms
// can only send form or text bodies.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			LogWarn(r, "rejected non-JSON write", "content_type", r.Header.Get("Content-Type"))
			Error(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
