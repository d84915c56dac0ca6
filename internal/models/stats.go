package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Stat is a count that may instead carry a failure marker.
// It encodes as a JSON number when the count is known and as a string otherwise,
// so a failed lookup is never confused with a zero count.
type Stat struct {
	Value  int
	Marker string
}

// Count returns a known count
func Count(n int) Stat {
	return Stat{Value: n}
}

// Failed returns a stat carrying an error marker
func Failed(format string, args ...interface{}) Stat {
	return Stat{Marker: "Error: " + fmt.Sprintf(format, args...)}
}

// Unavailable returns a stat marking a value that could not be read
func Unavailable() Stat {
	return Stat{Marker: "N/A"}
}

// OK reports whether the stat holds a count
func (s Stat) OK() bool {
	return s.Marker == ""
}

func (s Stat) String() string {
	if s.OK() {
		return fmt.Sprintf("%d", s.Value)
	}
	return s.Marker
}

// MarshalJSON encodes the count or the marker
func (s Stat) MarshalJSON() ([]byte, error) {
	if s.OK() {
		return json.Marshal(s.Value)
	}
	return json.Marshal(s.Marker)
}

// UnmarshalJSON accepts either a number or a marker string
func (s *Stat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		*s = Stat{Marker: marker}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stat must be a number or a string: %w", err)
	}
	*s = Count(n)
	return nil
}

// SiteStatistics holds site-wide counts
type SiteStatistics struct {
	TotalUsers       Stat  `json:"total_users"`
	ActiveUsers      Stat  `json:"active_users"`
	TotalCourses     Stat  `json:"total_courses"`
	TotalCategories  Stat  `json:"total_categories"`
	TotalEnrollments *Stat `json:"total_enrollments,omitempty"`
}

// ShortCourseSummary aggregates the short (professional development) courses
type ShortCourseSummary struct {
	Prefix        string `json:"prefix"`
	TotalCourses  int    `json:"total_courses"`
	TotalStudents int    `json:"total_students"`
	TotalTeachers int    `json:"total_teachers"`
}

// Overview is the dashboard statistics payload
type Overview struct {
	SiteName      string             `json:"site_name,omitempty"`
	Statistics    SiteStatistics     `json:"statistics"`
	TotalTeachers int                `json:"total_teachers"`
	ShortCourses  ShortCourseSummary `json:"short_courses"`
	TopCourses    []RankedCourse     `json:"top_courses"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Snapshot is a recorded copy of the site statistics
type Snapshot struct {
	ID         string         `json:"id"`
	TakenAt    time.Time      `json:"taken_at"`
	Statistics SiteStatistics `json:"statistics"`
}
