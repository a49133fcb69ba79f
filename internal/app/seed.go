package app

import (
	"context"
	"fmt"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
	"github.com/gippro/learnsync/internal/syncer"
)

type demoModule struct {
	course model.CourseID
	order  int64
	title  string
	body   string
}

var demoModules = []demoModule{
	{model.CourseForex, 1, "What Moves a Currency Pair", "Rates, risk appetite and flows. Learn to read a quote before you trade it."},
	{model.CourseForex, 2, "Pips, Lots and Leverage", "Size every position from the stop, not from the balance."},
	{model.CourseForex, 3, "Building a Trading Plan", "Entry, exit and invalidation written down before the trade."},
	{model.CourseSales, 1, "Prospecting That Works", "Qualify early. A short list of real buyers beats a long list of names."},
	{model.CourseSales, 2, "Discovery Calls", "Ask, listen, summarize. The buyer should talk most of the call."},
	{model.CourseSales, 3, "Handling Objections", "An objection is a question about value. Answer the question."},
	{model.CourseDesign, 1, "Visual Hierarchy", "Size, weight and contrast tell the eye where to go first."},
	{model.CourseDesign, 2, "Color Systems", "Pick a small palette with roles, then stick to it."},
	{model.CourseDesign, 3, "Typography Basics", "Two typefaces at most. Let spacing do the rest."},
}

var demoVideos = []map[string]interface{}{
	{"title": "Reading a Forex Chart", "category": string(model.CourseForex), "videoUrl": "https://www.youtube.com/watch?v=Lk6CqbWg4Ho"},
	{"title": "Cold Calling Without Fear", "category": string(model.CourseSales), "videoUrl": "https://www.youtube.com/watch?v=VGYR2vZgZcY"},
	{"title": "Grid Layouts in Practice", "category": string(model.CourseDesign), "videoUrl": "https://www.youtube.com/watch?v=a0Qd8d9wNXU"},
}

var demoUpdates = []map[string]interface{}{
	{"title": "Welcome to GIP Pro", "body": "Three courses, one dashboard. Start anywhere.", "type": "announcement"},
	{"title": "Practice market is live", "body": "Paper trade EUR/USD from the Forex course.", "type": "feature"},
}

// SeedDemo fills an empty store with a small catalog, video library and
// announcement feed so a development host has something to mirror
func SeedDemo(ctx context.Context, store remote.Store, layout syncer.Layout) error {
	for _, m := range demoModules {
		_, err := store.Create(ctx, layout.Modules, map[string]interface{}{
			"courseId": string(m.course),
			"order":    m.order,
			"title":    m.title,
			"body":     m.body,
		})
		if err != nil {
			return fmt.Errorf("seeding module %q: %w", m.title, err)
		}
	}
	for _, v := range demoVideos {
		if _, err := store.Create(ctx, layout.Videos, v); err != nil {
			return fmt.Errorf("seeding video: %w", err)
		}
	}
	for _, u := range demoUpdates {
		fields := make(map[string]interface{}, len(u)+1)
		for k, v := range u {
			fields[k] = v
		}
		fields["createdAt"] = remote.ServerTimestamp
		if _, err := store.Create(ctx, layout.Updates, fields); err != nil {
			return fmt.Errorf("seeding update: %w", err)
		}
	}
	return nil
}
