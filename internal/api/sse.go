package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// StreamEvents is the per-client server-sent event stream. Every open tab
// of a client subscribes here and receives the same events.
func (h *HTTPHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	local := localFrom(r)
	ch, cancel := h.bus.Subscribe(local.ClientID())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
	log.Printf("INFO: Client %s opened an event stream (%d open)", local.ClientID(), h.bus.Subscribers(local.ClientID()))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Printf("INFO: Client %s closed an event stream", local.ClientID())
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("ERROR: Encoding %s event failed: %v", ev.Kind, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
