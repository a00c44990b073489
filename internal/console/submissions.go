// submissions.go -- Survey responses, documents and document processing.
package console

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
	"github.com/MGallo-Code/adminity/internal/webhook"
	"github.com/gofrs/uuid/v5"
)

const (
	MsgInvalidURL          = "Please enter a valid URL."
	MsgProcessingDisabled  = "Document processing is not configured."
	MsgProcessingQueueFull = "Document processing queue is full. Please try again later."
)

// ListSurveys handles GET /dashboard/surveys?type=&q= (newest first).
// type "all" or empty matches every survey type.
func (h *Handler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	views, err := h.surveyViews(r)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	web.JSON(w, r, http.StatusOK, views)
}

func (h *Handler) surveyViews(r *http.Request) ([]surveyView, error) {
	q := r.URL.Query()
	f := store.SurveyFilter{
		Type:  strings.TrimSpace(q.Get("type")),
		Query: strings.TrimSpace(q.Get("q")),
	}
	if strings.EqualFold(f.Type, "all") {
		f.Type = ""
	}
	surveys, err := h.Records.ListSurveyResponses(r.Context(), f)
	if err != nil {
		return nil, err
	}
	return mapViews(surveys, newSurveyView), nil
}

// ListDocuments handles GET /dashboard/documents?q= (newest upload first).
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	views, err := h.documentViews(r)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	web.JSON(w, r, http.StatusOK, views)
}

func (h *Handler) documentViews(r *http.Request) ([]documentView, error) {
	docs, err := h.Records.ListDocuments(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		return nil, err
	}
	return mapViews(docs, newDocumentView), nil
}

// ProcessDocument handles POST /dashboard/documents/process with {"url": ...}.
// The job is queued for the webhook worker; the response is 202 with the job ID.
func (h *Handler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		web.ServiceUnavailable(w, r, MsgProcessingDisabled)
		return
	}

	var in struct {
		URL string `json:"url"`
	}
	if err := web.DecodeJSON(w, r, &in); err != nil {
		web.LogDebug(r, "process document: undecodable body", "error", err)
		web.BadRequest(w, r, MsgInvalidFields, nil)
		return
	}
	in.URL = strings.TrimSpace(in.URL)
	if !validDocumentURL(in.URL) {
		web.BadRequest(w, r, MsgInvalidFields, web.FieldErrors{"url": {MsgInvalidURL}})
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	job := webhook.Job{ID: id.String(), URL: in.URL, RequestedBy: actorID(r), EnqueuedAt: time.Now().UTC()}
	if err := h.Jobs.Send(r.Context(), job); err != nil {
		if errors.Is(err, webhook.ErrQueueFull) {
			web.LogWarn(r, "process document: queue full", "url", in.URL)
			web.ServiceUnavailable(w, r, MsgProcessingQueueFull)
			return
		}
		web.InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "document queued for processing", "job_id", job.ID, "url", job.URL, "by", job.RequestedBy)
	web.JSON(w, r, http.StatusAccepted, map[string]string{"id": job.ID, "status": "queued"})
}

// validDocumentURL accepts absolute http(s) URLs with a host.
func validDocumentURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
