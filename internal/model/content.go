package model

import (
	"strings"
	"time"
)

// MaxPostContentLength bounds community post bodies
const MaxPostContentLength = 5000

// Module is a read-only unit of course content
type Module struct {
	ID       string   `json:"id"`
	CourseID CourseID `json:"courseId"`
	Title    string   `json:"title"`
	Order    int64    `json:"order"`
	Body     string   `json:"body,omitempty"`
	VideoURL string   `json:"videoUrl,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// Post is a community feed entry. Never mutated after creation.
type Post struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	CourseID   CourseID  `json:"courseId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Likes      int64     `json:"likes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Video is a video library entry
type Video struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	VideoURL string `json:"videoUrl"`
}

// Update is an announcement feed entry
type Update struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPost is the validated input for a post creation
type NewPost struct {
	Content  string
	CourseID CourseID
}

// Validate rejects whitespace-only and oversized content.
// An empty course scope becomes general.
func (p *NewPost) Validate() error {
	if strings.TrimSpace(p.Content) == "" {
		return &ValidationError{Reason: ReasonEmptyContent, Field: "content"}
	}
	if len(p.Content) > MaxPostContentLength {
		return &ValidationError{Reason: ReasonContentTooLong, Field: "content"}
	}
	if p.CourseID == "" {
		p.CourseID = CourseGeneral
	}
	if !IsPostCourse(p.CourseID) {
		return &ValidationError{Reason: ReasonInvalidCourse, Field: "courseId"}
	}
	return nil
}
