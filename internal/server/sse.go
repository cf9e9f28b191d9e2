package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/easel-ai/easel/internal/event"
	"github.com/easel-ai/easel/internal/logging"
)

// SSEHeartbeatInterval is the interval for SSE heartbeat comments.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	// ResponseController flushes through middleware wrappers; fall back to
	// the plain flusher if it refuses.
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// sessionEvents streams one session's output as SSE until the client
// disconnects or the session is removed.
func (srv *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	events := make(chan event.Event, 64)
	unsub, err := srv.registry.SubscribeOutput(id, func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("session", id).
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent("connected", map[string]string{"sessionID": id}); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent(string(e.Type), e); err != nil {
				return
			}
			if e.Type == event.SessionDeleted {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
