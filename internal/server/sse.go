package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Event names on the session event stream
const (
	EventStatus   = "status"
	EventError    = "error"
	EventComplete = "complete"
)

// CompleteEvent is the last event of a stream that reached a terminal status
type CompleteEvent struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// eventStream writes Server-Sent Events. Status events carry the session
// version as their id so a reconnecting client can send Last-Event-ID and
// skip the state it already has.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

// lastEventID returns the version a reconnecting client last saw, or -1
func lastEventID(r *http.Request) int64 {
	v, err := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	if err != nil || v < 0 {
		return -1
	}
	return v
}

func (s *eventStream) send(event string, id int64, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id >= 0 {
		if _, err := fmt.Fprintf(s.w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) status(e StatusEvent) error {
	return s.send(EventStatus, e.Version, e)
}

func (s *eventStream) fail(message string) {
	s.send(EventError, -1, map[string]string{"error": message}) //nolint:errcheck
}

func (s *eventStream) complete(sessionID, status string) {
	s.send(EventComplete, -1, CompleteEvent{SessionID: sessionID, Status: status}) //nolint:errcheck
}
