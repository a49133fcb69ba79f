package fixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
	"github.com/gippro/learnsync/internal/syncer"
)

// Factory creates test documents in a store
type Factory struct {
	store  remote.Store
	layout syncer.Layout
	seq    atomic.Int64
}

// New creates a new fixture factory
func New(store remote.Store, layout syncer.Layout) *Factory {
	return &Factory{store: store, layout: layout}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// Course Fixtures
// ============================================================================

// ModuleOpts customizes module creation
type ModuleOpts struct {
	Course model.CourseID
	Order  int64
	Title  string
	Body   string
}

// CreateModule creates a catalog module. Course defaults to forex and order
// to the next sequence number.
func (f *Factory) CreateModule(t *testing.T, opts ModuleOpts) model.Module {
	t.Helper()

	n := f.seq.Add(1)
	if opts.Course == "" {
		opts.Course = model.CourseForex
	}
	if opts.Order == 0 {
		opts.Order = n
	}
	if opts.Title == "" {
		opts.Title = fmt.Sprintf("Module %d", n)
	}

	fields := map[string]interface{}{
		"courseId": string(opts.Course),
		"order":    opts.Order,
		"title":    opts.Title,
		"body":     opts.Body,
	}
	id, err := f.store.Create(ctx(t), f.layout.Modules, fields)
	if err != nil {
		t.Fatalf("fixtures: failed to create module: %v", err)
	}
	return model.Module{ID: id, CourseID: opts.Course, Order: opts.Order, Title: opts.Title, Body: opts.Body}
}

// ============================================================================
// Feed Fixtures
// ============================================================================

// PostOpts customizes post creation
type PostOpts struct {
	Content    string
	Course     model.CourseID
	AuthorID   string
	AuthorName string
}

// CreatePost creates a community post stamped with the server time
func (f *Factory) CreatePost(t *testing.T, opts PostOpts) string {
	t.Helper()

	if opts.Content == "" {
		opts.Content = fmt.Sprintf("post %d", f.seq.Add(1))
	}
	if opts.Course == "" {
		opts.Course = model.CourseGeneral
	}
	if opts.AuthorID == "" {
		opts.AuthorID = "author"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = model.AnonymousAuthor
	}

	id, err := f.store.Create(ctx(t), f.layout.Posts, map[string]interface{}{
		"content":    opts.Content,
		"courseId":   string(opts.Course),
		"authorId":   opts.AuthorID,
		"authorName": opts.AuthorName,
		"likes":      int64(0),
		"createdAt":  remote.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create post: %v", err)
	}
	return id
}

// CreateVideo creates a video library entry
func (f *Factory) CreateVideo(t *testing.T, title string, category model.CourseID) string {
	t.Helper()

	id, err := f.store.Create(ctx(t), f.layout.Videos, map[string]interface{}{
		"title":    title,
		"category": string(category),
		"videoUrl": "https://www.youtube.com/watch?v=" + fmt.Sprintf("vid%d", f.seq.Add(1)),
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create video: %v", err)
	}
	return id
}

// CreateUpdate creates an announcement
func (f *Factory) CreateUpdate(t *testing.T, title string) string {
	t.Helper()

	id, err := f.store.Create(ctx(t), f.layout.Updates, map[string]interface{}{
		"title":     title,
		"body":      title,
		"type":      "announcement",
		"createdAt": remote.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create update: %v", err)
	}
	return id
}

// ============================================================================
// Profile Fixtures
// ============================================================================

// ProfileOpts customizes profile creation
type ProfileOpts struct {
	DisplayName string
	XP          int64
	Streak      int64
	Completed   []string
	DarkMode    bool
}

// CreateProfile writes a profile document for uid
func (f *Factory) CreateProfile(t *testing.T, uid string, opts ProfileOpts) {
	t.Helper()

	if opts.DisplayName == "" {
		opts.DisplayName = model.DefaultDisplayName
	}
	completed := opts.Completed
	if completed == nil {
		completed = []string{}
	}

	err := f.store.Merge(ctx(t), f.layout.Profile(uid), map[string]interface{}{
		model.FieldDisplayName:      opts.DisplayName,
		model.FieldXP:               opts.XP,
		model.FieldStreak:           opts.Streak,
		model.FieldCompletedModules: completed,
		model.FieldDarkMode:         opts.DarkMode,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create profile: %v", err)
	}
}
