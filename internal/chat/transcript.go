package chat

import (
	"context"
	"strings"
	"sync"
)

// Greeting opens every transcript
const Greeting = "Hello! I'm your GIP Pro Tutor. Ask me about Forex, Sales, or Design!"

// DefaultWindow is the number of turns sent per call when none is configured
const DefaultWindow = 6

// Transcript is the local conversation history
type Transcript struct {
	mu     sync.Mutex
	turns  []Turn
	window int
}

// NewTranscript starts a transcript with the greeting
func NewTranscript(window int) *Transcript {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Transcript{
		turns:  []Turn{{Role: RoleBot, Text: Greeting}},
		window: window,
	}
}

// Add appends a turn
func (t *Transcript) Add(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Turns returns the full history
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Turn{}, t.turns...)
}

// Window returns the most recent turns to send, starting at a user turn
func (t *Transcript) Window() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := len(t.turns) - t.window
	if start < 0 {
		start = 0
	}
	for start < len(t.turns) && t.turns[start].Role != RoleUser {
		start++
	}
	return append([]Turn{}, t.turns[start:]...)
}

// Completer produces a bot reply for a request
type Completer interface {
	Reply(ctx context.Context, req Request) string
}

// Tutor runs a conversation against a Completer
type Tutor struct {
	completer  Completer
	transcript *Transcript
}

// NewTutor creates a tutor with a fresh transcript
func NewTutor(completer Completer, window int) *Tutor {
	return &Tutor{completer: completer, transcript: NewTranscript(window)}
}

// Ask records message, sends the recent window and records the reply.
// Blank messages are ignored and return false.
func (t *Tutor) Ask(ctx context.Context, displayName, message string) (string, bool) {
	if strings.TrimSpace(message) == "" {
		return "", false
	}
	t.transcript.Add(Turn{Role: RoleUser, Text: message})

	reply := t.completer.Reply(ctx, Request{
		System: SystemPrompt(displayName),
		Turns:  t.transcript.Window(),
	})
	t.transcript.Add(Turn{Role: RoleBot, Text: reply})
	return reply, true
}

// Transcript returns the full history
func (t *Tutor) Transcript() []Turn {
	return t.transcript.Turns()
}
