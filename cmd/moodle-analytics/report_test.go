package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/services"
)

func TestPrintOverview(t *testing.T) {
	teacher := "Ada Lovelace"
	overview := &models.Overview{
		SiteName: "Campus",
		Statistics: models.SiteStatistics{
			TotalUsers:      models.Count(0),
			ActiveUsers:     models.Failed("timeout"),
			TotalCourses:    models.Count(3),
			TotalCategories: models.Count(2),
		},
		TotalTeachers: 1,
		ShortCourses:  models.ShortCourseSummary{Prefix: "PDC-", TotalCourses: 1, TotalStudents: 4, TotalTeachers: 1},
		TopCourses: []models.RankedCourse{
			{Rank: 1, Course: models.Course{ID: 5, FullName: "Algebra", CategoryName: "Math", EnrolledStudentCount: 12, TeacherName: &teacher}},
			{Rank: 2, Course: models.Course{ID: 6, FullName: "Poetry", CategoryName: "Arts", EnrolledStudentCount: 3}},
		},
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	printOverview(&buf, overview)
	out := buf.String()

	for _, want := range []string{"Campus", "Error: timeout", "Algebra", "Ada Lovelace", "PDC- courses"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "Users") || !strings.Contains(out, "0\n") {
		t.Errorf("zero user count not printed:\n%s", out)
	}
}

func TestPrintReports(t *testing.T) {
	reports := []services.Report{
		{Name: "moodle", Healthy: true, LatencyMS: 12, Details: map[string]string{"version": "4.1", "release": "4.1.2"}},
		{Name: "reporting", Healthy: false, Cause: "auth_failed", Error: "password authentication failed"},
	}

	var buf bytes.Buffer
	printReports(&buf, reports)
	out := buf.String()

	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "auth_failed: password authentication failed") {
		t.Errorf("failure not reported:\n%s", out)
	}
	if strings.Index(out, "release=4.1.2") > strings.Index(out, "version=4.1") {
		t.Errorf("details not sorted:\n%s", out)
	}
}
