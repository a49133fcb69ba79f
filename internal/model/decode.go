package model

import (
	"strconv"
	"time"
)

// Remote documents arrive as loosely typed maps. The decoders below are the only
// place that shape is trusted; anything unexpected falls back to the default value.

// DecodeProfilePatch extracts the fields present in a profile document
func DecodeProfilePatch(doc map[string]interface{}) ProfilePatch {
	var p ProfilePatch
	if v, ok := doc[FieldDisplayName].(string); ok {
		p.DisplayName = &v
	}
	if v, ok := doc[FieldBio].(string); ok {
		p.Bio = &v
	}
	if v, ok := doc[FieldJobTitle].(string); ok {
		p.JobTitle = &v
	}
	if v, ok := toInt(doc[FieldXP]); ok {
		v = clampNonNegative(v)
		p.XP = &v
	}
	if v, ok := toInt(doc[FieldStreak]); ok {
		v = clampNonNegative(v)
		p.Streak = &v
	}
	if raw, ok := doc[FieldCompletedModules]; ok {
		if ids, ok := toStringSet(raw); ok {
			p.CompletedModules = ids
			p.HasCompleted = true
		}
	}
	if raw, ok := doc[FieldSavedResources].(map[string]interface{}); ok {
		p.SavedResources = make(map[string]SavedResource, len(raw))
		for key, v := range raw {
			entry, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			r := SavedResource{
				ModuleID: key,
				Title:    getString(entry, "title"),
				CourseID: CourseID(getString(entry, "courseId")),
				SavedAt:  getTime(entry, "savedAt"),
			}
			p.SavedResources[key] = r
		}
		p.HasSaved = true
	}
	if raw, ok := doc[FieldVisitCounts].(map[string]interface{}); ok {
		p.VisitCounts = make(map[CourseID]int64, len(raw))
		for k, v := range raw {
			if n, ok := toInt(v); ok {
				p.VisitCounts[CourseID(k)] = clampNonNegative(n)
			}
		}
	}
	if settings, ok := doc[FieldSettings].(map[string]interface{}); ok {
		if v, ok := settings["darkMode"].(bool); ok {
			p.DarkMode = &v
		}
	}
	if t, ok := toTime(doc[FieldLastLogin]); ok {
		p.LastLogin = &t
	}
	return p
}

// DecodeModule decodes a course module. ok is false when the course id is unknown.
func DecodeModule(id string, doc map[string]interface{}) (Module, bool) {
	m := Module{
		ID:       id,
		CourseID: CourseID(getString(doc, "courseId")),
		Title:    getString(doc, "title"),
		Body:     getString(doc, "body"),
		VideoURL: getString(doc, "videoUrl"),
		Duration: getString(doc, "duration"),
	}
	if n, ok := toInt(doc["order"]); ok {
		m.Order = n
	}
	if m.Body == "" {
		m.Body = getString(doc, "content")
	}
	return m, IsCatalogCourse(m.CourseID)
}

// DecodePost decodes a community post
func DecodePost(id string, doc map[string]interface{}) Post {
	p := Post{
		ID:         id,
		Content:    getString(doc, "content"),
		CourseID:   CourseID(getString(doc, "courseId")),
		AuthorID:   getString(doc, "authorId"),
		AuthorName: getString(doc, "authorName"),
		CreatedAt:  getTime(doc, "createdAt"),
	}
	if p.CourseID == "" {
		p.CourseID = CourseGeneral
	}
	if p.AuthorName == "" {
		p.AuthorName = AnonymousAuthor
	}
	if n, ok := toInt(doc["likes"]); ok {
		p.Likes = clampNonNegative(n)
	}
	return p
}

// DecodeVideo decodes a video library entry
func DecodeVideo(id string, doc map[string]interface{}) Video {
	return Video{
		ID:       id,
		Title:    getString(doc, "title"),
		Category: getString(doc, "category"),
		VideoURL: getString(doc, "videoUrl"),
	}
}

// DecodeUpdate decodes an announcement feed entry
func DecodeUpdate(id string, doc map[string]interface{}) Update {
	return Update{
		ID:        id,
		Title:     getString(doc, "title"),
		Body:      getString(doc, "body"),
		Type:      getString(doc, "type"),
		CreatedAt: getTime(doc, "createdAt"),
	}
}

func getString(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}

func getTime(doc map[string]interface{}, key string) time.Time {
	t, _ := toTime(doc[key])
	return t
}

func clampNonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// utcTimer covers time wrappers such as the database driver's datetime type
type utcTimer interface {
	UTC() time.Time
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case map[string]interface{}:
		// {seconds, nanoseconds} as written by some document stores
		secs, ok := toInt(t["seconds"])
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := toInt(t["nanoseconds"])
		return time.Unix(secs, nanos).UTC(), true
	case utcTimer:
		return t.UTC(), true
	}
	if ms, ok := toInt(v); ok {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func toStringSet(v interface{}) ([]string, bool) {
	var ids []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, dup := seen[s]; dup || s == "" {
			return
		}
		seen[s] = struct{}{}
		ids = append(ids, s)
	}
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			add(s)
		}
	case []interface{}:
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case nil:
	default:
		return nil, false
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true
}
