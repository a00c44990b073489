// watch.go -- Live collection feeds over Server-Sent Events.
package console

import (
	"context"
	"net/http"
	"time"

	"github.com/MGallo-Code/adminity/internal/live"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
)

const MsgLiveUpdatesDisabled = "Live updates are not available."

const defaultKeepalive = 15 * time.Second

// Watch returns the handler for GET /dashboard/<c>/watch. The stream sends a
// "snapshot" event with the full list (same query parameters as the list
// endpoint) on connect and after every change to c.
func (h *Handler) Watch(c store.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Changes == nil {
			web.ServiceUnavailable(w, r, MsgLiveUpdatesDisabled)
			return
		}

		// subscribe before the first fetch so no change slips between them
		changes, cancel, err := h.Changes.Subscribe(r.Context(), c)
		if err != nil {
			web.LogError(r, "watch: subscribe failed", "collection", string(c), "error", err)
			web.ServiceUnavailable(w, r, MsgLiveUpdatesDisabled)
			return
		}
		defer cancel()

		stream, err := live.NewEventStream(w)
		if err != nil {
			web.LogError(r, "watch: streaming unsupported", "error", err)
			return
		}

		interval := h.KeepaliveInterval
		if interval <= 0 {
			interval = defaultKeepalive
		}
		stop := make(chan struct{})
		defer close(stop)
		go stream.Keepalive(interval, stop)

		web.LogDebug(r, "watch: stream opened", "collection", string(c))
		emit := func(v any) error { return stream.Send("snapshot", v) }
		if err := live.Watch(r.Context(), changes, h.snapshot(r, c), emit); err != nil {
			web.LogError(r, "watch: stream ended", "collection", string(c), "error", err)
			_ = stream.Send("error", map[string]string{"error": "Live updates failed. Please reload."})
			return
		}
		web.LogDebug(r, "watch: stream closed", "collection", string(c))
	}
}

// snapshot returns the fetch func for c's list, honouring r's query string.
func (h *Handler) snapshot(r *http.Request, c store.Collection) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		req := r.WithContext(ctx)
		switch c {
		case store.CollectionAdmins:
			return h.adminViews(req)
		case store.CollectionUsers:
			return h.userViews(req)
		case store.CollectionSurveys:
			return h.surveyViews(req)
		default:
			return h.documentViews(req)
		}
	}
}
