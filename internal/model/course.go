package model

// CourseID identifies one of the three fixed courses
type CourseID string

const (
	CourseForex  CourseID = "forex"
	CourseSales  CourseID = "sales"
	CourseDesign CourseID = "design"

	// CourseGeneral is only valid for posts
	CourseGeneral CourseID = "general"
)

// Courses lists the catalog courses in display order
var Courses = []CourseID{CourseForex, CourseSales, CourseDesign}

// IsCatalogCourse reports whether id names one of the three catalog courses
func IsCatalogCourse(id CourseID) bool {
	switch id {
	case CourseForex, CourseSales, CourseDesign:
		return true
	}
	return false
}

// IsPostCourse reports whether id is a valid post scope
func IsPostCourse(id CourseID) bool {
	return id == CourseGeneral || IsCatalogCourse(id)
}

// Catalog groups modules per course. Each sequence is ordered by Module.Order.
type Catalog map[CourseID][]Module

// NewCatalog returns a catalog with an empty sequence for every course
func NewCatalog() Catalog {
	c := make(Catalog, len(Courses))
	for _, id := range Courses {
		c[id] = []Module{}
	}
	return c
}

// All returns every module, course by course in display order
func (c Catalog) All() []Module {
	var all []Module
	for _, id := range Courses {
		all = append(all, c[id]...)
	}
	return all
}

// Find looks up a module by id across all courses
func (c Catalog) Find(moduleID string) (Module, bool) {
	for _, id := range Courses {
		for _, m := range c[id] {
			if m.ID == moduleID {
				return m, true
			}
		}
	}
	return Module{}, false
}

// Clone returns a copy that shares no slices with c
func (c Catalog) Clone() Catalog {
	out := NewCatalog()
	for id, mods := range c {
		cp := make([]Module, len(mods))
		copy(cp, mods)
		out[id] = cp
	}
	return out
}
