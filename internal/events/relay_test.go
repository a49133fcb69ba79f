package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/syncer"
)

func TestMirrorRelay(t *testing.T) {
	h := NewHub(time.Hour)
	defer h.Close()
	sub := h.Subscribe("a", TopicMirror)

	relay := MirrorRelay(h)
	relay(syncer.Change{Stream: syncer.StreamPosts})
	relay(syncer.Change{Stream: syncer.StreamVideos, Err: errors.New("denied")})

	ev := <-sub.Events
	assert.Equal(t, TypeStreamChanged, ev.Type)
	assert.Equal(t, StreamPayload{Stream: syncer.StreamPosts}, ev.Data)

	ev = <-sub.Events
	assert.Equal(t, TypeStreamFailed, ev.Type)
	assert.Equal(t, StreamPayload{Stream: syncer.StreamVideos, Error: "denied"}, ev.Data)
}

func TestSessionRelay(t *testing.T) {
	h := NewHub(time.Hour)
	defer h.Close()
	sub := h.Subscribe("a", TopicMirror)

	relay := SessionRelay(h)
	relay(&model.Identity{UID: "u1"})
	relay(nil)

	assert.Equal(t, SessionPayload{SignedIn: true, UID: "u1"}, (<-sub.Events).Data)
	assert.Equal(t, SessionPayload{}, (<-sub.Events).Data)
}
