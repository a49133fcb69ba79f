package syncer

import (
	"sort"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
)

// groupModules builds the catalog from a full collection snapshot. Modules of
// unknown courses are dropped. Each course is sorted ascending by order, ties
// keep arrival order.
func groupModules(docs []remote.Document) model.Catalog {
	catalog := model.NewCatalog()
	for _, doc := range docs {
		m, ok := model.DecodeModule(doc.ID, doc.Data)
		if !ok {
			continue
		}
		catalog[m.CourseID] = append(catalog[m.CourseID], m)
	}
	for _, id := range model.Courses {
		mods := catalog[id]
		sort.SliceStable(mods, func(i, j int) bool {
			return mods[i].Order < mods[j].Order
		})
	}
	return catalog
}

// decodePosts returns the posts newest first; a missing timestamp sorts oldest
func decodePosts(docs []remote.Document) []model.Post {
	posts := make([]model.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, model.DecodePost(doc.ID, doc.Data))
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func decodeUpdates(docs []remote.Document) []model.Update {
	updates := make([]model.Update, 0, len(docs))
	for _, doc := range docs {
		updates = append(updates, model.DecodeUpdate(doc.ID, doc.Data))
	}
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	return updates
}

// decodeVideos keeps arrival order
func decodeVideos(docs []remote.Document) []model.Video {
	videos := make([]model.Video, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, model.DecodeVideo(doc.ID, doc.Data))
	}
	return videos
}

// defaultProfileFields is the document written for a first-seen identity
func defaultProfileFields() map[string]interface{} {
	visits := make(map[string]interface{}, len(model.Courses))
	for _, id := range model.Courses {
		visits[string(id)] = int64(0)
	}
	return map[string]interface{}{
		model.FieldDisplayName:      model.DefaultDisplayName,
		model.FieldBio:              "",
		model.FieldJobTitle:         "",
		model.FieldXP:               int64(0),
		model.FieldStreak:           int64(0),
		model.FieldCompletedModules: []string{},
		model.FieldSavedResources:   map[string]interface{}{},
		model.FieldVisitCounts:      visits,
		model.FieldDarkMode:         false,
		model.FieldLastLogin:        remote.ServerTimestamp,
	}
}
