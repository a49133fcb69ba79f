package handler

import (
	"context"
	"net/http"

	"github.com/gippro/learnsync/internal/chat"
	"github.com/gippro/learnsync/internal/model"
)

// Tutor answers chat messages and keeps the transcript
type Tutor interface {
	Ask(ctx context.Context, displayName, message string) (string, bool)
	Transcript() []chat.Turn
}

// ProfileSource exposes the mirrored profile
type ProfileSource interface {
	Profile() model.Profile
}

// ChatHandler handles the tutor endpoints
type ChatHandler struct {
	tutor   Tutor
	profile ProfileSource
}

// NewChatHandler creates a new chat handler
func NewChatHandler(tutor Tutor, profile ProfileSource) *ChatHandler {
	return &ChatHandler{tutor: tutor, profile: profile}
}

// ChatRequest is a user message
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the bot reply
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Ask handles POST /v1/chat. Assistant failures are reported in the reply
// text, never as an HTTP error.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	reply, ok := h.tutor.Ask(r.Context(), h.profile.Profile().DisplayName, req.Message)
	if !ok {
		WriteError(w, MapError(model.NewValidationFailure(model.ReasonEmptyContent)))
		return
	}
	WriteData(w, http.StatusOK, ChatResponse{Reply: reply}, map[string]string{"transcript": "/v1/chat"})
}

// Transcript handles GET /v1/chat
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, h.tutor.Transcript(), nil)
}
