// Package console serves the admin console's JSON API: dashboard counts,
// administrator and user management, submissions, document processing and
// live collection feeds. Every route sits behind the access gate.
package console

import (
	"context"
	"net/http"
	"time"

	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
	"github.com/MGallo-Code/adminity/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

// Records is the persistence surface the console reads and writes.
// Satisfied by *store.PostgresStore.
type Records interface {
	Count(ctx context.Context, c store.Collection) (int64, error)

	ListAdmins(ctx context.Context) ([]store.Admin, error)
	GetAdminByID(ctx context.Context, id uuid.UUID) (*store.Admin, error)
	CreateAdmin(ctx context.Context, a *store.Admin) error
	UpdateAdmin(ctx context.Context, id uuid.UUID, u store.AdminUpdate) error
	DeleteAdmin(ctx context.Context, id uuid.UUID) error

	ListUsers(ctx context.Context, q string) ([]store.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
	CreateUser(ctx context.Context, u *store.User) error

	ListSurveyResponses(ctx context.Context, f store.SurveyFilter) ([]store.SurveyResponse, error)
	ListDocuments(ctx context.Context, q string) ([]store.Document, error)
}

// ChangeFeed publishes and subscribes to collection change notifications.
// Satisfied by *store.ChangeFeed.
type ChangeFeed interface {
	Publish(ctx context.Context, c store.Collection) error
	Subscribe(ctx context.Context, c store.Collection) (<-chan struct{}, func(), error)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Handler holds the console's dependencies.
// Changes and Jobs are optional; without them live feeds and document
// processing answer 503.
type Handler struct {
	Records Records
	Changes ChangeFeed
	Jobs    webhook.Sender

	// Checks maps a dependency name to its health probe for GET /healthz.
	Checks map[string]HealthCheck

	// KeepaliveInterval spaces SSE pings on watch streams. Default 15s.
	KeepaliveInterval time.Duration
}

// Routes registers the console's request/response endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		web.SeeOther(w, r, "/dashboard")
	})
	r.Get("/dashboard", h.Dashboard)

	r.Get("/dashboard/admins", h.ListAdmins)
	r.With(web.RequireJSON).Post("/dashboard/admins", h.CreateAdmin)
	r.With(web.RequireJSON).Put("/dashboard/admins/{id}", h.UpdateAdmin)
	r.Delete("/dashboard/admins/{id}", h.DeleteAdmin)

	r.Get("/dashboard/users", h.ListUsers)
	r.Get("/dashboard/users/{id}", h.GetUser)
	r.With(web.RequireJSON).Post("/dashboard/users", h.CreateUser)

	r.Get("/dashboard/surveys", h.ListSurveys)

	r.Get("/dashboard/documents", h.ListDocuments)
	r.With(web.RequireJSON).Post("/dashboard/documents/process", h.ProcessDocument)
}

// WatchRoutes registers one SSE endpoint per collection. Streams are long
// lived, so r must not carry a request timeout.
func (h *Handler) WatchRoutes(r chi.Router) {
	for _, c := range store.Collections {
		r.Get("/dashboard/"+string(c)+"/watch", h.Watch(c))
	}
}

// Dashboard handles GET /dashboard -- one count per collection.
// A count that failed is null so the rest of the dashboard still renders.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]*int64, len(store.Collections))
	for _, c := range store.Collections {
		n, err := h.Records.Count(r.Context(), c)
		if err != nil {
			web.LogError(r, "dashboard: count failed", "collection", string(c), "error", err)
			counts[string(c)] = nil
			continue
		}
		counts[string(c)] = &n
	}
	web.JSON(w, r, http.StatusOK, counts)
}

// Health handles GET /healthz -- pings every dependency, returns per-dependency status.
// Returns 200 if all are healthy, 503 if any is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Checks))
	code := http.StatusOK
	for name, check := range h.Checks {
		if err := check(r.Context()); err != nil {
			web.LogError(r, "health check failed", "dependency", name, "error", err)
			status[name] = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	web.JSON(w, r, code, status)
}

// publish notifies live views that c changed. Failures are logged and never
// fail the write.
func (h *Handler) publish(r *http.Request, c store.Collection) {
	if h.Changes == nil {
		return
	}
	if err := h.Changes.Publish(r.Context(), c); err != nil {
		web.LogWarn(r, "publishing change failed", "collection", string(c), "error", err)
	}
}

// pathID parses the {id} URL parameter. ok is false when it is not a UUID.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	return id, err == nil
}
