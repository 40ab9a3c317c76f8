package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-darshan/internal/logger"
)

func setupHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

// Serve streams topic to the client until it disconnects.
func Serve(w http.ResponseWriter, r *http.Request, e *Emitter, topic string, log *logger.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	setupHeaders(w)

	ctx := r.Context()
	events := e.Subscribe(ctx, topic)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"topic\":%q}\n\n", topic)
	flusher.Flush()
	log.Info("SSE", fmt.Sprintf("client connected to %s", topic))

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				log.Error("SSE", fmt.Sprintf("serialize %s event: %v", msg.Event, err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
			flusher.Flush()
		case <-ctx.Done():
			log.Debug("SSE", fmt.Sprintf("client disconnected from %s", topic))
			return
		}
	}
}
