package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"orbit/internal/delivery/http/helpers"
)

// snapshotBuffer is the per-client queue depth for SSE streams. Every message
// is a full snapshot, so a client only ever needs the newest one; the buffer
// absorbs short bursts without blocking the feed's dispatch goroutine.
const snapshotBuffer = 8

// prepareStream asserts the response writer supports flushing and writes the
// SSE headers. On failure it writes a 500 and returns false.
func prepareStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "streaming unsupported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// writeStreamEvent marshals v and writes it as one SSE message.
func writeStreamEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// enqueueSnapshot queues a snapshot for delivery without ever blocking the
// caller. When the buffer is full the oldest queued snapshot is discarded,
// never the incoming one, so a slow consumer always converges on the latest
// state once changes stop.
func enqueueSnapshot[T any](ch chan T, snapshot T) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
