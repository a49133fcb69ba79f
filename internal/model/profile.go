package model

import (
	"sort"
	"time"
)

// Profile defaults
const (
	DefaultDisplayName = "Student"
	AnonymousAuthor    = "Anonymous"
)

// Profile constraints
const (
	MaxDisplayNameLength = 80
	MaxBioLength         = 500
	MaxJobTitleLength    = 100
)

// Profile is the per-identity progress document
type Profile struct {
	UID              string                   `json:"uid"`
	DisplayName      string                   `json:"displayName"`
	Bio              string                   `json:"bio"`
	JobTitle         string                   `json:"jobTitle"`
	XP               int64                    `json:"xp"`
	Streak           int64                    `json:"streak"`
	CompletedModules []string                 `json:"completedModules"`
	SavedResources   map[string]SavedResource `json:"savedResources"`
	VisitCounts      map[CourseID]int64       `json:"visitCounts"`
	Settings         Settings                 `json:"settings"`
	LastLogin        *time.Time               `json:"lastLogin,omitempty"`
}

// Settings holds user options. Only darkMode is recognized.
type Settings struct {
	DarkMode bool `json:"darkMode"`
}

// SavedResource is an entry in the saved-reference list, keyed by module id
type SavedResource struct {
	ModuleID string    `json:"id"`
	Title    string    `json:"title"`
	CourseID CourseID  `json:"courseId"`
	SavedAt  time.Time `json:"savedAt"`
}

// NewProfile returns a profile with default values for uid
func NewProfile(uid string) Profile {
	visits := make(map[CourseID]int64, len(Courses))
	for _, id := range Courses {
		visits[id] = 0
	}
	return Profile{
		UID:              uid,
		DisplayName:      DefaultDisplayName,
		CompletedModules: []string{},
		SavedResources:   map[string]SavedResource{},
		VisitCounts:      visits,
	}
}

// HasCompleted reports whether moduleID is in the completed set
func (p Profile) HasCompleted(moduleID string) bool {
	for _, id := range p.CompletedModules {
		if id == moduleID {
			return true
		}
	}
	return false
}

// IsSaved reports whether a resource is saved for moduleID
func (p Profile) IsSaved(moduleID string) bool {
	_, ok := p.SavedResources[moduleID]
	return ok
}

// SavedList returns saved resources, most recently saved first
func (p Profile) SavedList() []SavedResource {
	list := make([]SavedResource, 0, len(p.SavedResources))
	for _, r := range p.SavedResources {
		list = append(list, r)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SavedAt.Equal(list[j].SavedAt) {
			return list[i].ModuleID < list[j].ModuleID
		}
		return list[i].SavedAt.After(list[j].SavedAt)
	})
	return list
}

// Clone returns a deep copy of p
func (p Profile) Clone() Profile {
	out := p
	out.CompletedModules = append([]string{}, p.CompletedModules...)
	out.SavedResources = make(map[string]SavedResource, len(p.SavedResources))
	for k, v := range p.SavedResources {
		out.SavedResources[k] = v
	}
	out.VisitCounts = make(map[CourseID]int64, len(p.VisitCounts))
	for k, v := range p.VisitCounts {
		out.VisitCounts[k] = v
	}
	if p.LastLogin != nil {
		t := *p.LastLogin
		out.LastLogin = &t
	}
	return out
}

// ProfilePatch carries the fields present in a remote profile snapshot.
// A nil field was absent and leaves the local value untouched.
type ProfilePatch struct {
	DisplayName      *string
	Bio              *string
	JobTitle         *string
	XP               *int64
	Streak           *int64
	CompletedModules []string
	HasCompleted     bool
	SavedResources   map[string]SavedResource
	HasSaved         bool
	VisitCounts      map[CourseID]int64
	DarkMode         *bool
	LastLogin        *time.Time
}

// Apply merges the patch into p. Top-level fields are replaced when present;
// settings are merged field by field so a partial settings object never drops siblings.
func (p *Profile) Apply(patch ProfilePatch) {
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.JobTitle != nil {
		p.JobTitle = *patch.JobTitle
	}
	if patch.XP != nil {
		p.XP = *patch.XP
	}
	if patch.Streak != nil {
		p.Streak = *patch.Streak
	}
	if patch.HasCompleted {
		p.CompletedModules = append([]string{}, patch.CompletedModules...)
	}
	if patch.HasSaved {
		p.SavedResources = make(map[string]SavedResource, len(patch.SavedResources))
		for k, v := range patch.SavedResources {
			p.SavedResources[k] = v
		}
	}
	if patch.VisitCounts != nil {
		if p.VisitCounts == nil {
			p.VisitCounts = make(map[CourseID]int64)
		}
		for k, v := range patch.VisitCounts {
			p.VisitCounts[k] = v
		}
	}
	if patch.DarkMode != nil {
		p.Settings.DarkMode = *patch.DarkMode
	}
	if patch.LastLogin != nil {
		t := *patch.LastLogin
		p.LastLogin = &t
	}
}

// ProfileUpdate is a caller-supplied partial profile edit. Only non-nil fields are written.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	JobTitle    *string `json:"jobTitle,omitempty"`
	DarkMode    *bool   `json:"darkMode,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.Bio == nil && u.JobTitle == nil && u.DarkMode == nil
}

// Fields returns the update as field paths suitable for a remote merge
func (u ProfileUpdate) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.DisplayName != nil {
		fields[FieldDisplayName] = *u.DisplayName
	}
	if u.Bio != nil {
		fields[FieldBio] = *u.Bio
	}
	if u.JobTitle != nil {
		fields[FieldJobTitle] = *u.JobTitle
	}
	if u.DarkMode != nil {
		fields[FieldDarkMode] = *u.DarkMode
	}
	return fields
}

// Validate checks field constraints
func (u ProfileUpdate) Validate() error {
	if u.DisplayName != nil && (len(*u.DisplayName) == 0 || len(*u.DisplayName) > MaxDisplayNameLength) {
		return &ValidationError{Reason: ReasonInvalidField, Field: FieldDisplayName}
	}
	if u.Bio != nil && len(*u.Bio) > MaxBioLength {
		return &ValidationError{Reason: ReasonContentTooLong, Field: FieldBio}
	}
	if u.JobTitle != nil && len(*u.JobTitle) > MaxJobTitleLength {
		return &ValidationError{Reason: ReasonContentTooLong, Field: FieldJobTitle}
	}
	return nil
}

// ApplyLocal applies the update directly to p, for hosts without a session
func (u ProfileUpdate) ApplyLocal(p *Profile) {
	p.Apply(ProfilePatch{
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		JobTitle:    u.JobTitle,
		DarkMode:    u.DarkMode,
	})
}

// Profile document field paths
const (
	FieldDisplayName      = "displayName"
	FieldBio              = "bio"
	FieldJobTitle         = "jobTitle"
	FieldXP               = "xp"
	FieldStreak           = "streak"
	FieldCompletedModules = "completedModules"
	FieldSavedResources   = "savedResources"
	FieldVisitCounts      = "visitCounts"
	FieldSettings         = "settings"
	FieldDarkMode         = "settings.darkMode"
	FieldLastLogin        = "lastLogin"
)

// VisitCountField returns the field path of a course visit counter
func VisitCountField(course CourseID) string {
	return FieldVisitCounts + "." + string(course)
}
