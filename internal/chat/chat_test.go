package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{Endpoint: server.URL, Model: "tutor-1", APIKey: "k"}, nil)
}

func reply(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
}

// ============================================================================
// Client
// ============================================================================

func TestClient_Complete(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/tutor-1:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, reply("Pips measure price moves."))
	})

	text, err := client.Complete(context.Background(), Request{
		System: SystemPrompt("Ada"),
		Turns: []Turn{
			{Role: RoleUser, Text: "What is a pip?"},
			{Role: RoleBot, Text: "A unit."},
			{Role: RoleUser, Text: "More?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pips measure price moves.", text)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "You are a motivating AI Tutor. User: Ada. Keep answers short and educational.", got.SystemInstruction.Parts[0].Text)
}

func TestClient_ReplySentinels(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "candidate",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, reply("hi")) },
			want:    "hi",
		},
		{
			name:    "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"candidates":[]}`) },
			want:    ReplyNoCandidate,
		},
		{
			name: "error status with json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"error":{"code":403}}`)
			},
			want: ReplyNoCandidate,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "<html>bad gateway</html>")
			},
			want: ReplyTransportError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			assert.Equal(t, tt.want, client.Reply(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Text: "q"}}}))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "m"}, nil)
	_, err := client.Complete(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Text: "q"}}})
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, ReplyTransportError, client.Reply(context.Background(), Request{}))
}

// ============================================================================
// Transcript and tutor
// ============================================================================

func TestTranscript_Window(t *testing.T) {
	tr := NewTranscript(4)
	assert.Empty(t, tr.Window(), "the greeting alone is never sent")

	for i := 0; i < 5; i++ {
		tr.Add(Turn{Role: RoleUser, Text: fmt.Sprintf("q%d", i)})
		tr.Add(Turn{Role: RoleBot, Text: fmt.Sprintf("a%d", i)})
	}

	window := tr.Window()
	require.Len(t, window, 4)
	assert.Equal(t, "q3", window[0].Text)
	assert.Equal(t, "a4", window[3].Text)
	assert.Len(t, tr.Turns(), 11)
	assert.Equal(t, Greeting, tr.Turns()[0].Text)
}

func TestTranscript_WindowStartsAtUserTurn(t *testing.T) {
	tr := NewTranscript(3)
	tr.Add(Turn{Role: RoleUser, Text: "q0"})
	tr.Add(Turn{Role: RoleBot, Text: "a0"})
	tr.Add(Turn{Role: RoleUser, Text: "q1"})

	window := tr.Window()
	require.Len(t, window, 3)
	assert.Equal(t, RoleUser, window[0].Role)

	tr.Add(Turn{Role: RoleBot, Text: "a1"})
	window = tr.Window()
	require.Len(t, window, 2, "a window opening on a bot turn is trimmed")
	assert.Equal(t, "q1", window[0].Text)
}

type recordingCompleter struct {
	mu       sync.Mutex
	requests []Request
	answer   string
}

func (r *recordingCompleter) Reply(_ context.Context, req Request) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.answer
}

func TestTutor_Ask(t *testing.T) {
	completer := &recordingCompleter{answer: "Keep going!"}
	tutor := NewTutor(completer, 2)

	_, ok := tutor.Ask(context.Background(), "Ada", "   ")
	assert.False(t, ok)
	assert.Empty(t, completer.requests)

	got, ok := tutor.Ask(context.Background(), "Ada", "first")
	require.True(t, ok)
	assert.Equal(t, "Keep going!", got)

	_, ok = tutor.Ask(context.Background(), "Ada", "second")
	require.True(t, ok)

	require.Len(t, completer.requests, 2)
	last := completer.requests[1]
	assert.True(t, strings.Contains(last.System, "User: Ada."))
	require.Len(t, last.Turns, 1, "window of 2 ending on the new user turn")
	assert.Equal(t, "second", last.Turns[0].Text)

	history := tutor.Transcript()
	assert.Len(t, history, 5)
	assert.Equal(t, RoleBot, history[4].Role)
}
