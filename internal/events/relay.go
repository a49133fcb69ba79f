package events

import (
	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/syncer"
)

// StreamPayload is the data of a stream event
type StreamPayload struct {
	Stream syncer.Stream `json:"stream"`
	Error  string        `json:"error,omitempty"`
}

// SessionPayload is the data of a session event
type SessionPayload struct {
	SignedIn bool   `json:"signedIn"`
	UID      string `json:"uid,omitempty"`
}

// MirrorRelay returns an engine observer that publishes every change on TopicMirror
func MirrorRelay(h *Hub) func(syncer.Change) {
	return func(c syncer.Change) {
		if c.Err != nil {
			h.Publish(NewEvent(TypeStreamFailed, TopicMirror, StreamPayload{Stream: c.Stream, Error: c.Err.Error()}))
			return
		}
		h.Publish(NewEvent(TypeStreamChanged, TopicMirror, StreamPayload{Stream: c.Stream}))
	}
}

// SessionRelay returns a session listener that publishes identity transitions
func SessionRelay(h *Hub) func(*model.Identity) {
	return func(id *model.Identity) {
		payload := SessionPayload{}
		if id != nil {
			payload.SignedIn = true
			payload.UID = id.UID
		}
		h.Publish(NewEvent(TypeSession, TopicMirror, payload))
	}
}
