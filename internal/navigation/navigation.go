// Package navigation maps view destinations to courses and accent colors.
package navigation

import (
	"strings"

	"github.com/gippro/learnsync/internal/model"
)

// Accent colors
const (
	AccentForex   = "#ef4444"
	AccentSales   = "#10b981"
	AccentDesign  = "#f59e0b"
	AccentDefault = "#3b82f6"
)

var accents = map[model.CourseID]string{
	model.CourseForex:  AccentForex,
	model.CourseSales:  AccentSales,
	model.CourseDesign: AccentDesign,
}

// CourseFor returns the course a destination such as "course-forex" belongs to.
// Courses are matched by substring in catalog order.
func CourseFor(destination string) (model.CourseID, bool) {
	dest := strings.ToLower(destination)
	for _, id := range model.Courses {
		if strings.Contains(dest, string(id)) {
			return id, true
		}
	}
	return "", false
}

// Accent returns the theme color for a destination
func Accent(destination string) string {
	if id, ok := CourseFor(destination); ok {
		return accents[id]
	}
	return AccentDefault
}

// View is the navigation result handed to the view layer
type View struct {
	Destination string         `json:"destination"`
	Course      model.CourseID `json:"course,omitempty"`
	Accent      string         `json:"accent"`
}

// Resolve describes destination
func Resolve(destination string) View {
	course, _ := CourseFor(destination)
	return View{Destination: destination, Course: course, Accent: Accent(destination)}
}
