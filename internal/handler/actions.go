package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/navigation"
)

// DefaultXPReward is granted when a completion request names no reward
const DefaultXPReward int64 = 100

// Actions issues user intents against the remote store
type Actions interface {
	CompleteModule(ctx context.Context, moduleID string, xpReward int64) error
	ToggleSaveResource(ctx context.Context, module model.Module) (bool, error)
	CreatePost(ctx context.Context, content string, courseID model.CourseID) (string, error)
	SaveProfile(ctx context.Context, update model.ProfileUpdate) error
	ResetProgress(ctx context.Context, confirmed bool) error
	ToggleDarkMode(ctx context.Context) (bool, error)
	RecordVisit(ctx context.Context, destination string) error
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// CatalogSource exposes the mirrored course catalog
type CatalogSource interface {
	Courses() model.Catalog
}

// ActionHandler handles user intent endpoints
type ActionHandler struct {
	actions Actions
	catalog CatalogSource
	logger  *slog.Logger
}

// NewActionHandler creates a new action handler
func NewActionHandler(actions Actions, catalog CatalogSource, logger *slog.Logger) *ActionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionHandler{actions: actions, catalog: catalog, logger: logger}
}

// CompleteRequest is the body of a completion
type CompleteRequest struct {
	XPReward *int64 `json:"xpReward,omitempty"`
}

// CompleteModule handles POST /v1/modules/{moduleId}/complete
func (h *ActionHandler) CompleteModule(w http.ResponseWriter, r *http.Request) {
	moduleID := r.PathValue("moduleId")

	var req CompleteRequest
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
	}
	reward := DefaultXPReward
	if req.XPReward != nil {
		reward = *req.XPReward
	}

	if err := h.actions.CompleteModule(r.Context(), moduleID, reward); err != nil {
		WriteError(w, MapErrorWithContext(err, "complete module"))
		return
	}
	WriteNoContent(w)
}

// ToggleResourceRequest names the module to save or unsave
type ToggleResourceRequest struct {
	ModuleID string `json:"moduleId"`
}

// ToggleResource handles POST /v1/resources/toggle
func (h *ActionHandler) ToggleResource(w http.ResponseWriter, r *http.Request) {
	var req ToggleResourceRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.ModuleID == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{{Field: "moduleId", Message: "required"}}))
		return
	}

	module, ok := h.catalog.Courses().Find(req.ModuleID)
	if !ok {
		WriteError(w, model.NewNotFoundError("module"))
		return
	}

	saved, err := h.actions.ToggleSaveResource(r.Context(), module)
	if err != nil {
		WriteError(w, MapErrorWithContext(err, "toggle resource"))
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"saved": saved}, nil)
}

// CreatePostRequest is the body of a new community post
type CreatePostRequest struct {
	Content  string `json:"content"`
	CourseID string `json:"courseId"`
}

// CreatePost handles POST /v1/posts
func (h *ActionHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	id, err := h.actions.CreatePost(r.Context(), req.Content, model.CourseID(req.CourseID))
	if err != nil {
		WriteError(w, MapErrorWithContext(err, "create post"))
		return
	}
	WriteData(w, http.StatusCreated, map[string]string{"id": id}, map[string]string{"feed": "/v1/state?posts=" + req.CourseID})
}

// UpdateProfile handles PATCH /v1/profile
func (h *ActionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if err := DecodeJSON(r, &update); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.actions.SaveProfile(r.Context(), update); err != nil {
		WriteError(w, MapErrorWithContext(err, "save profile"))
		return
	}
	WriteNoContent(w)
}

// ResetRequest carries the explicit confirmation a reset needs
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// ResetProgress handles POST /v1/profile/reset
func (h *ActionHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
	}

	if err := h.actions.ResetProgress(r.Context(), req.Confirm); err != nil {
		WriteError(w, MapErrorWithContext(err, "reset progress"))
		return
	}
	WriteNoContent(w)
}

// ToggleDarkMode handles POST /v1/settings/dark-mode
func (h *ActionHandler) ToggleDarkMode(w http.ResponseWriter, r *http.Request) {
	dark, err := h.actions.ToggleDarkMode(r.Context())
	if err != nil {
		WriteError(w, MapErrorWithContext(err, "toggle dark mode"))
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"darkMode": dark}, nil)
}

// NavigateRequest names the destination view
type NavigateRequest struct {
	Destination string `json:"destination"`
}

// Navigate handles POST /v1/nav. The visit is counted in the background when
// the destination belongs to a course, so the count never delays or fails
// the navigation.
func (h *ActionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.Destination == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{{Field: "destination", Message: "required"}}))
		return
	}

	destination := req.Destination
	h.logger.Debug("navigate", "destination", destination)
	h.actions.Go(context.WithoutCancel(r.Context()), "record_visit", func(ctx context.Context) error {
		return h.actions.RecordVisit(ctx, destination)
	})
	WriteData(w, http.StatusOK, navigation.Resolve(req.Destination), nil)
}
