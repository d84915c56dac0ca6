package models

import "strings"

// SiteCourseID is the reserved course that represents the Moodle front page
const SiteCourseID = 1

// UncategorizedName is used when no category name can be resolved for a course
const UncategorizedName = "Uncategorized"

// Course is a Moodle course enriched with enrollment and category data
type Course struct {
	ID                   int     `json:"id"`
	FullName             string  `json:"fullname"`
	ShortName            string  `json:"shortname"`
	CategoryID           int     `json:"category_id"`
	CategoryName         string  `json:"category_name"`
	EnrolledStudentCount int     `json:"enrolled_students"`
	TeacherName          *string `json:"teacher"`
	TeacherIDs           []int   `json:"teacher_ids,omitempty"`
	TeacherCount         int     `json:"teacher_count"`
	Visible              bool    `json:"visible"`
}

// HasShortNamePrefix reports whether the short name starts with prefix, ignoring case
func (c *Course) HasShortNamePrefix(prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(c.ShortName), strings.ToLower(prefix))
}

// RankedCourse is a course placed in an enrollment ranking
type RankedCourse struct {
	Rank int `json:"rank"`
	Course
}

// EnrolledUser is a user enrolled in a course together with their role shortnames
type EnrolledUser struct {
	ID       int      `json:"id"`
	FullName string   `json:"fullname"`
	Roles    []string `json:"roles"`
}

// Role shortnames used for classification
const (
	RoleStudent        = "student"
	RoleTeacher        = "teacher"
	RoleEditingTeacher = "editingteacher"
)

// IsTeacher returns true if any role grants teaching rights
func (u EnrolledUser) IsTeacher() bool {
	for _, role := range u.Roles {
		if role == RoleTeacher || role == RoleEditingTeacher {
			return true
		}
	}
	return false
}

// IsStudent applies the first-role rule: a user without roles, or whose first
// role is student, counts as a student. Later roles are not consulted.
func (u EnrolledUser) IsStudent() bool {
	return len(u.Roles) == 0 || u.Roles[0] == RoleStudent
}

// Page is one page of a filtered course list
type Page struct {
	Items      []Course   `json:"courses"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the position of a page within the full list
type Pagination struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}
