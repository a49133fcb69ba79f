package handler

import (
	"net/http"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/presenter"
	"github.com/gippro/learnsync/internal/syncer"
)

// StateSource exposes the local mirror
type StateSource interface {
	Snapshot() syncer.State
}

// StateHandler renders the mirror
type StateHandler struct {
	source StateSource
}

// NewStateHandler creates a new state handler
func NewStateHandler(source StateSource) *StateHandler {
	return &StateHandler{source: source}
}

// VideoView is a library entry with its embeddable URL
type VideoView struct {
	model.Video
	EmbedURL string `json:"embedUrl"`
}

// StateResponse is the mirror plus the derived dashboard
type StateResponse struct {
	Identity  *model.Identity                       `json:"identity"`
	Profile   model.Profile                         `json:"profile"`
	Dashboard presenter.Dashboard                   `json:"dashboard"`
	Courses   model.Catalog                         `json:"courses"`
	Posts     []model.Post                          `json:"posts"`
	Videos    []VideoView                           `json:"videos"`
	Updates   []model.Update                        `json:"updates"`
	Streams   map[syncer.Stream]syncer.StreamStatus `json:"streams"`
}

// Get handles GET /v1/state. The posts query parameter filters the feed by
// course; videos are ranked by the most visited course.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	state := h.source.Snapshot()

	filter := r.URL.Query().Get("posts")
	if filter == "" {
		filter = presenter.FilterAll
	}

	ranked := presenter.RankVideos(state.Videos, state.Profile.VisitCounts)
	videos := make([]VideoView, 0, len(ranked))
	for _, v := range ranked {
		videos = append(videos, VideoView{Video: v, EmbedURL: presenter.EmbedURL(v.VideoURL)})
	}

	WriteData(w, http.StatusOK, StateResponse{
		Identity:  state.Identity,
		Profile:   state.Profile,
		Dashboard: presenter.BuildDashboard(state.Profile, state.Courses),
		Courses:   state.Courses,
		Posts:     presenter.FilterPosts(state.Posts, filter),
		Videos:    videos,
		Updates:   state.Updates,
		Streams:   state.Streams,
	}, map[string]string{
		"self":   "/v1/state",
		"events": "/v1/events",
	})
}
