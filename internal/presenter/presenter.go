// Package presenter derives view data from mirror state. Nothing here
// touches the remote store.
package presenter

import (
	"sort"
	"strings"

	"github.com/gippro/learnsync/internal/model"
)

// FilterAll selects every post
const FilterAll = "all"

// NextModule returns the first module not yet completed, walking courses in
// catalog order
func NextModule(courses model.Catalog, completed []string) (model.Module, bool) {
	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[id] = struct{}{}
	}
	for _, m := range courses.All() {
		if _, ok := done[m.ID]; !ok {
			return m, true
		}
	}
	return model.Module{}, false
}

// TopCategory returns the most visited course. Ties go to the later course
// in catalog order, so a profile without visits ranks design first.
func TopCategory(visitCounts map[model.CourseID]int64) model.CourseID {
	top := model.Courses[0]
	for _, id := range model.Courses[1:] {
		if visitCounts[top] <= visitCounts[id] {
			top = id
		}
	}
	return top
}

// RankVideos returns the videos with the most visited category first. The
// relative order within each group is kept.
func RankVideos(videos []model.Video, visitCounts map[model.CourseID]int64) []model.Video {
	ranked := append([]model.Video{}, videos...)
	top := TopCategory(visitCounts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Category == string(top) && ranked[j].Category != string(top)
	})
	return ranked
}

// FilterPosts returns posts of one course scope, or all of them for "all" or ""
func FilterPosts(posts []model.Post, filter string) []model.Post {
	if filter == "" || filter == FilterAll {
		return append([]model.Post{}, posts...)
	}
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if string(p.CourseID) == filter {
			out = append(out, p)
		}
	}
	return out
}

// FirstName returns the greeting name for a display name
func FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return model.DefaultDisplayName
	}
	return fields[0]
}

// EmbedURL turns a watch link into an embeddable player link
func EmbedURL(videoURL string) string {
	u := strings.Replace(videoURL, "watch?v=", "embed/", 1)
	if i := strings.Index(u, "&"); i >= 0 {
		u = u[:i]
	}
	return u
}

// Dashboard is the summary shown on the landing view
type Dashboard struct {
	Greeting       string                `json:"greeting"`
	NextModule     *model.Module         `json:"nextModule,omitempty"`
	XP             int64                 `json:"xp"`
	Streak         int64                 `json:"streak"`
	Completed      int                   `json:"completed"`
	TotalModules   int                   `json:"totalModules"`
	SavedResources []model.SavedResource `json:"savedResources"`
}

// BuildDashboard summarizes profile progress against the catalog
func BuildDashboard(profile model.Profile, courses model.Catalog) Dashboard {
	d := Dashboard{
		Greeting:       FirstName(profile.DisplayName),
		XP:             profile.XP,
		Streak:         profile.Streak,
		Completed:      len(profile.CompletedModules),
		TotalModules:   len(courses.All()),
		SavedResources: profile.SavedList(),
	}
	if m, ok := NextModule(courses, profile.CompletedModules); ok {
		d.NextModule = &m
	}
	return d
}
