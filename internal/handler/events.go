package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/gippro/learnsync/internal/events"
	"github.com/gippro/learnsync/internal/model"
)

// EventsHandler streams mirror and simulator changes over SSE
type EventsHandler struct {
	hub *events.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /v1/events. The optional topic query parameter narrows
// the stream to one topic.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	topics := []string{events.TopicMirror, events.TopicSimulator}
	switch topic := r.URL.Query().Get("topic"); topic {
	case "":
	case events.TopicMirror, events.TopicSimulator:
		topics = []string{topic}
	default:
		WriteError(w, model.NewBadRequestError("unknown topic "+topic))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, model.NewInternalError("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	sub := h.hub.Subscribe(subscriberID, topics...)
	defer h.hub.Unsubscribe(subscriberID)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber_id\":\"%s\"}\n\n", subscriberID)
	flusher.Flush()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			fmt.Fprint(w, event.Format())
			flusher.Flush()

		case <-sub.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}
