package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gippro/learnsync/internal/events"
)

func TestEventsStream_DeliversTopicEvents(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(time.Hour)
	defer hub.Close()
	h := NewEventsHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/events?topic=mirror", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(rr, req)
	}()

	require.Eventually(t, func() bool { return hub.SubscriberCount(events.TopicMirror) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.SubscriberCount(events.TopicSimulator))

	hub.Publish(events.NewEvent(events.TypeStreamChanged, events.TopicMirror, events.StreamPayload{Stream: "posts"}))
	hub.Publish(events.NewEvent(events.TypeSimulatorTick, events.TopicSimulator, map[string]float64{"price": 1.1}))

	// Give the stream loop a moment to write before disconnecting.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "event: connected\n"))
	assert.Contains(t, body, "event: stream.changed\ndata: {\"stream\":\"posts\"}\n\n")
	assert.NotContains(t, body, "simulator.tick")
	assert.Equal(t, 0, hub.SubscriberCount(events.TopicMirror))
}

func TestEventsStream_UnknownTopic_ReturnsBadRequest(t *testing.T) {
	t.Parallel()

	h := NewEventsHandler(events.NewHub(time.Hour))
	rr := httptest.NewRecorder()
	h.Stream(rr, httptest.NewRequest(http.MethodGet, "/v1/events?topic=guilds", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
