package api

import (
	"fmt"
	"net/http"
	"time"

	"bus-tracker/internal/broadcast"
)

const keepAliveInterval = 25 * time.Second

// Events streams broadcast payloads as server-sent events. Channels are
// chosen with repeated channel, trip and route query parameters, e.g.
// /events?trip=T1&route=R7&channel=route-updates.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var channels []string
	channels = append(channels, q["channel"]...)
	for _, id := range q["trip"] {
		channels = append(channels, broadcast.TripChannel(id))
	}
	for _, id := range q["route"] {
		channels = append(channels, broadcast.RouteChannel(id))
	}
	if len(channels) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "at least one channel, trip or route is required", Status: http.StatusBadRequest})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported", Status: http.StatusInternalServerError})
		return
	}

	sub := h.events.Subscribe(channels...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Channel, msg.Payload)
			flusher.Flush()
		}
	}
}
