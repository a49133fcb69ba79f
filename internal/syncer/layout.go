package syncer

import (
	"github.com/gippro/learnsync/internal/remote"
)

// Layout names the app-scoped remote collections
type Layout struct {
	Users   string
	Modules string
	Posts   string
	Videos  string
	Updates string
}

// NewLayout scopes every collection with appID
func NewLayout(appID string) Layout {
	scope := func(name string) string {
		if appID == "" {
			return name
		}
		return appID + "_" + name
	}
	return Layout{
		Users:   scope("users"),
		Modules: scope("course_modules"),
		Posts:   scope("community_posts"),
		Videos:  scope("video_library"),
		Updates: scope("content_stream"),
	}
}

// Profile returns the profile document of uid
func (l Layout) Profile(uid string) remote.Ref {
	return remote.Doc(l.Users, uid)
}

// Collection returns the collection behind a collection stream
func (l Layout) Collection(s Stream) string {
	switch s {
	case StreamCourses:
		return l.Modules
	case StreamPosts:
		return l.Posts
	case StreamVideos:
		return l.Videos
	case StreamUpdates:
		return l.Updates
	}
	return ""
}
