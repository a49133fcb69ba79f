// Package events fans mirror and simulator changes out to SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Type is the SSE event name
type Type string

const (
	// Mirror events
	TypeStreamChanged Type = "stream.changed"
	TypeStreamFailed  Type = "stream.failed"
	TypeSession       Type = "session.changed"

	// Simulator events
	TypeSimulatorTick  Type = "simulator.tick"
	TypeSimulatorTrade Type = "simulator.trade"

	// System events
	TypeHeartbeat Type = "heartbeat"
)

// Topics
const (
	TopicMirror    = "mirror"
	TopicSimulator = "simulator"
)

// DefaultHeartbeat is the keep-alive interval
const DefaultHeartbeat = 30 * time.Second

const subscriberBuffer = 100

// Event is one server-sent event
type Event struct {
	Type  Type        `json:"type"`
	Data  interface{} `json:"data"`
	Topic string      `json:"-"`
}

// NewEvent creates an event for topic
func NewEvent(eventType Type, topic string, data interface{}) *Event {
	return &Event{Type: eventType, Topic: topic, Data: data}
}

// Format returns the SSE wire form
func (e *Event) Format() string {
	data, _ := json.Marshal(e.Data)
	return "event: " + string(e.Type) + "\ndata: " + string(data) + "\n\n"
}

// Subscriber is a connected SSE client
type Subscriber struct {
	ID     string
	Topics []string
	Events chan *Event
	Done   chan struct{}
}

// Hub manages subscriptions and broadcasting. Slow subscribers drop events
// rather than block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // topic -> subscriber id -> subscriber
	byID        map[string]*Subscriber
	heartbeat   *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// NewHub creates a hub sending heartbeats every interval
func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	h := &Hub{
		subscribers: make(map[string]map[string]*Subscriber),
		byID:        make(map[string]*Subscriber),
		heartbeat:   time.NewTicker(interval),
		done:        make(chan struct{}),
	}
	go h.sendHeartbeats()
	return h
}

// Subscribe registers id for topics
func (h *Hub) Subscribe(id string, topics ...string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     id,
		Topics: topics,
		Events: make(chan *Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}
	for _, topic := range topics {
		if h.subscribers[topic] == nil {
			h.subscribers[topic] = make(map[string]*Subscriber)
		}
		h.subscribers[topic][id] = sub
	}
	h.byID[id] = sub
	return sub
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.byID[id]
	if !ok {
		return
	}
	for _, topic := range sub.Topics {
		delete(h.subscribers[topic], id)
		if len(h.subscribers[topic]) == 0 {
			delete(h.subscribers, topic)
		}
	}
	delete(h.byID, id)
	close(sub.Done)
	close(sub.Events)
}

// Publish sends event to every subscriber of its topic
func (h *Hub) Publish(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[event.Topic] {
		select {
		case sub.Events <- event:
		default:
			// buffer full, drop
		}
	}
}

func (h *Hub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C:
			event := &Event{
				Type: TypeHeartbeat,
				Data: map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				},
			}
			h.mu.RLock()
			for _, sub := range h.byID {
				select {
				case sub.Events <- event:
				default:
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// Close stops heartbeats and disconnects every subscriber. Safe to call twice.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.heartbeat.Stop()

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, sub := range h.byID {
			close(sub.Done)
			close(sub.Events)
			delete(h.byID, id)
		}
		h.subscribers = make(map[string]map[string]*Subscriber)
	})
}

// SubscriberCount returns the number of subscribers of topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}
