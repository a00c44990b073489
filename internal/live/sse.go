// sse.go -- Server-Sent Events writer.
package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// EventStream writes SSE frames to a single response. Safe for concurrent use
// so a keepalive can run alongside the writer.
type EventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
	mu sync.Mutex
}

// NewEventStream sends the SSE response headers and flushes them.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamingUnsupported, err)
	}
	return &EventStream{w: w, rc: rc}, nil
}

// Send writes one event whose data is v encoded as JSON.
func (s *EventStream) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
}

// Ping writes a comment line. Proxies that drop idle connections see traffic.
func (s *EventStream) Ping() error {
	return s.write(": ping\n\n")
}

// Keepalive pings every interval until stop is closed or a write fails.
func (s *EventStream) Keepalive(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := s.Ping(); err != nil {
				return
			}
		}
	}
}

func (s *EventStream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	return s.rc.Flush()
}
