package models

// Category is a Moodle course category
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ParentID    int    `json:"parent"`
	CourseCount int    `json:"coursecount"`
}

// CategoryEntry is a category positioned in a flattened hierarchy.
// Name carries the indent prefix, RawName does not.
type CategoryEntry struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	RawName     string `json:"raw_name"`
	ParentID    int    `json:"parent"`
	Depth       int    `json:"depth"`
	CourseCount int    `json:"coursecount"`
}
