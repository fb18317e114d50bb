package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/chefmarket/internal/notification"
)

// StreamHandlers pushes live notifications to connected clients over SSE
type StreamHandlers struct {
	hub *notification.Hub
}

func NewStreamHandlers(hub *notification.Hub) *StreamHandlers {
	return &StreamHandlers{hub: hub}
}

// Stream subscribes the caller to notification topics and relays them as
// server-sent events until the client disconnects. The caller's own actor ID
// is always subscribed; extra topics (order IDs, group order IDs) come from
// the topics query parameter.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSONError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	topics := []string{getActorID(r)}
	if extra := r.URL.Query().Get("topics"); extra != "" {
		for _, topic := range strings.Split(extra, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				topics = append(topics, topic)
			}
		}
	}

	sub := h.hub.Subscribe(topics...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-sub.Channel():
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
			flusher.Flush()
		}
	}
}
