package model

import (
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Profile Tests
// ============================================================================

func TestNewProfile_Defaults(t *testing.T) {
	t.Parallel()

	p := NewProfile("u1")

	if p.DisplayName != "Student" {
		t.Errorf("expected default display name, got %q", p.DisplayName)
	}
	if p.XP != 0 || p.Streak != 0 {
		t.Errorf("expected zero xp/streak, got %d/%d", p.XP, p.Streak)
	}
	for _, c := range Courses {
		n, ok := p.VisitCounts[c]
		if !ok || n != 0 {
			t.Errorf("expected visit count 0 for %s, got %d (present=%v)", c, n, ok)
		}
	}
	if p.Settings.DarkMode {
		t.Error("expected dark mode off by default")
	}
	if p.CompletedModules == nil || p.SavedResources == nil {
		t.Error("expected empty, non-nil collections")
	}
}

func TestProfile_Apply_PreservesAbsentFields(t *testing.T) {
	t.Parallel()

	p := NewProfile("u1")
	p.Bio = "keeps"
	p.Settings.DarkMode = true

	xp := int64(250)
	p.Apply(ProfilePatch{XP: &xp})

	if p.XP != 250 {
		t.Errorf("expected xp 250, got %d", p.XP)
	}
	if p.Bio != "keeps" {
		t.Errorf("absent bio was overwritten: %q", p.Bio)
	}
	if !p.Settings.DarkMode {
		t.Error("absent settings were dropped")
	}
}

func TestProfile_Clone_IsIndependent(t *testing.T) {
	t.Parallel()

	p := NewProfile("u1")
	p.CompletedModules = append(p.CompletedModules, "m1")
	c := p.Clone()
	c.CompletedModules[0] = "changed"
	c.VisitCounts[CourseForex] = 9

	if p.CompletedModules[0] != "m1" {
		t.Error("clone shares completed modules")
	}
	if p.VisitCounts[CourseForex] != 0 {
		t.Error("clone shares visit counts")
	}
}

func TestProfile_SavedList_NewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p := NewProfile("u1")
	p.SavedResources["a"] = SavedResource{ModuleID: "a", SavedAt: base}
	p.SavedResources["b"] = SavedResource{ModuleID: "b", SavedAt: base.Add(time.Hour)}

	list := p.SavedList()
	if len(list) != 2 || list[0].ModuleID != "b" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestProfile_QueriesOnCopies(t *testing.T) {
	t.Parallel()

	snapshot := func() Profile {
		p := NewProfile("u1")
		p.CompletedModules = []string{"m1"}
		p.SavedResources["m2"] = SavedResource{ModuleID: "m2"}
		return p
	}

	if !snapshot().HasCompleted("m1") || snapshot().HasCompleted("m2") {
		t.Error("HasCompleted on a returned profile")
	}
	if !snapshot().IsSaved("m2") || snapshot().IsSaved("m1") {
		t.Error("IsSaved on a returned profile")
	}
	if len(snapshot().SavedList()) != 1 {
		t.Error("SavedList on a returned profile")
	}
}

func TestProfileUpdate_Fields_OnlySupplied(t *testing.T) {
	t.Parallel()

	bio := "hello"
	u := ProfileUpdate{Bio: &bio}

	fields := u.Fields()
	if len(fields) != 1 || fields[FieldBio] != "hello" {
		t.Errorf("unexpected fields %v", fields)
	}
	if u.IsEmpty() {
		t.Error("update with bio should not be empty")
	}
}

func TestProfileUpdate_Validate(t *testing.T) {
	t.Parallel()

	empty := ""
	long := strings.Repeat("x", MaxBioLength+1)

	if err := (ProfileUpdate{DisplayName: &empty}).Validate(); err == nil {
		t.Error("expected empty display name to fail")
	}
	if err := (ProfileUpdate{Bio: &long}).Validate(); err == nil {
		t.Error("expected long bio to fail")
	}
	name := "Ada"
	if err := (ProfileUpdate{DisplayName: &name}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

// ============================================================================
// NewPost Tests
// ============================================================================

func TestNewPost_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		post   NewPost
		reason string
		course CourseID
	}{
		{name: "whitespace", post: NewPost{Content: "  \n\t"}, reason: ReasonEmptyContent},
		{name: "too long", post: NewPost{Content: strings.Repeat("a", MaxPostContentLength+1)}, reason: ReasonContentTooLong},
		{name: "unknown course", post: NewPost{Content: "hi", CourseID: "crypto"}, reason: ReasonInvalidCourse},
		{name: "defaults to general", post: NewPost{Content: "hi"}, course: CourseGeneral},
		{name: "course scoped", post: NewPost{Content: "hi", CourseID: CourseSales}, course: CourseSales},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.post.Validate()
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if tt.post.CourseID != tt.course {
					t.Errorf("expected course %s, got %s", tt.course, tt.post.CourseID)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, ve.Reason)
			}
		})
	}
}

// ============================================================================
// Decode Tests
// ============================================================================

func TestDecodeProfilePatch_ClampsAndDefaults(t *testing.T) {
	t.Parallel()

	doc := map[string]interface{}{
		"xp":               float64(-5),
		"streak":           uint64(3),
		"displayName":      42,
		"completedModules": []interface{}{"m1", "m1", 7, "m2"},
		"settings":         map[string]interface{}{"darkMode": true, "fontSize": 12},
		"visitCounts":      map[string]interface{}{"forex": float64(2)},
	}

	p := DecodeProfilePatch(doc)

	if p.XP == nil || *p.XP != 0 {
		t.Errorf("expected negative xp clamped to 0, got %v", p.XP)
	}
	if p.Streak == nil || *p.Streak != 3 {
		t.Errorf("expected streak 3, got %v", p.Streak)
	}
	if p.DisplayName != nil {
		t.Error("non-string display name should be treated as absent")
	}
	if len(p.CompletedModules) != 2 {
		t.Errorf("expected deduplicated string ids, got %v", p.CompletedModules)
	}
	if p.DarkMode == nil || !*p.DarkMode {
		t.Error("expected dark mode decoded")
	}
	if p.VisitCounts[CourseForex] != 2 {
		t.Errorf("expected forex visits 2, got %d", p.VisitCounts[CourseForex])
	}
	if p.HasSaved {
		t.Error("absent saved resources should not be marked present")
	}
}

func TestDecodeProfilePatch_SavedResourcesKeyed(t *testing.T) {
	t.Parallel()

	doc := map[string]interface{}{
		"savedResources": map[string]interface{}{
			"m1": map[string]interface{}{"title": "Pips", "courseId": "forex", "savedAt": "2025-01-02T03:04:05Z", "extra": true},
			"m2": "garbage",
		},
	}

	p := DecodeProfilePatch(doc)

	if !p.HasSaved || len(p.SavedResources) != 1 {
		t.Fatalf("expected one saved resource, got %v", p.SavedResources)
	}
	r := p.SavedResources["m1"]
	if r.ModuleID != "m1" || r.Title != "Pips" || r.CourseID != CourseForex {
		t.Errorf("unexpected record %+v", r)
	}
	if r.SavedAt.IsZero() {
		t.Error("expected savedAt parsed")
	}
}

func TestDecodeModule_UnknownCourseRejected(t *testing.T) {
	t.Parallel()

	m, ok := DecodeModule("x", map[string]interface{}{"courseId": "crypto", "order": 1})
	if ok {
		t.Errorf("expected unknown course rejected, got %+v", m)
	}

	m, ok = DecodeModule("y", map[string]interface{}{"courseId": "design", "title": "Grids"})
	if !ok || m.Order != 0 {
		t.Errorf("expected design module with default order, got %+v ok=%v", m, ok)
	}
}

func TestDecodePost_Fallbacks(t *testing.T) {
	t.Parallel()

	p := DecodePost("p1", map[string]interface{}{"content": "hi", "createdAt": map[string]interface{}{"seconds": int64(10)}})

	if p.AuthorName != AnonymousAuthor {
		t.Errorf("expected anonymous author, got %q", p.AuthorName)
	}
	if p.CourseID != CourseGeneral {
		t.Errorf("expected general course, got %q", p.CourseID)
	}
	if !p.CreatedAt.Equal(time.Unix(10, 0)) {
		t.Errorf("unexpected createdAt %v", p.CreatedAt)
	}

	missing := DecodePost("p2", map[string]interface{}{})
	if !missing.CreatedAt.IsZero() {
		t.Errorf("expected zero time for missing createdAt, got %v", missing.CreatedAt)
	}
}

// ============================================================================
// Catalog Tests
// ============================================================================

func TestCatalog_FindAndClone(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	c[CourseSales] = []Module{{ID: "s1", CourseID: CourseSales}}

	if _, ok := c.Find("s1"); !ok {
		t.Error("expected to find s1")
	}
	clone := c.Clone()
	clone[CourseSales][0].Title = "changed"
	if c[CourseSales][0].Title != "" {
		t.Error("clone shares backing arrays")
	}
	if len(c.All()) != 1 {
		t.Errorf("expected 1 module, got %d", len(c.All()))
	}
}
