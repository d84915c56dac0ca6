package analytics

import (
	"sort"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// TopEnrolled ranks courses by enrolled students, most first.
// Courses with equal counts keep their listing order.
func TopEnrolled(courses []models.Course, n int) []models.RankedCourse {
	if n <= 0 {
		return []models.RankedCourse{}
	}

	sorted := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		if c.ID > models.SiteCourseID {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EnrolledStudentCount > sorted[j].EnrolledStudentCount
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	ranked := make([]models.RankedCourse, len(sorted))
	for i, c := range sorted {
		ranked[i] = models.RankedCourse{Rank: i + 1, Course: c}
	}
	return ranked
}

// CountTeachers returns the number of distinct teachers across courses
func CountTeachers(courses []models.Course) int {
	return len(teacherSet(courses))
}

// SummarizeShortCourses aggregates the courses whose short name starts with prefix
func SummarizeShortCourses(courses []models.Course, prefix string) models.ShortCourseSummary {
	summary := models.ShortCourseSummary{Prefix: prefix}
	if prefix == "" {
		return summary
	}

	var matched []models.Course
	for i := range courses {
		if courses[i].ID > models.SiteCourseID && courses[i].HasShortNamePrefix(prefix) {
			matched = append(matched, courses[i])
			summary.TotalStudents += courses[i].EnrolledStudentCount
		}
	}
	summary.TotalCourses = len(matched)
	summary.TotalTeachers = len(teacherSet(matched))
	return summary
}

func teacherSet(courses []models.Course) map[int]struct{} {
	teachers := make(map[int]struct{})
	for _, c := range courses {
		if c.ID <= models.SiteCourseID {
			continue
		}
		for _, id := range c.TeacherIDs {
			teachers[id] = struct{}{}
		}
	}
	return teachers
}
