package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

const coursesFixture = `[
	{"id": 1, "fullname": "Moodle Site", "shortname": "site", "categoryid": 0},
	{"id": 5, "fullname": "Algebra", "shortname": "MATH101", "categoryid": 3, "visible": 1},
	{"id": 7, "fullname": "Mechanics", "shortname": "PHYS201", "categoryid": 4, "visible": 0},
	{"id": 9, "fullname": "Biology", "shortname": "PDC-BIO", "categoryid": 3}
]`

const categoriesFixture = `[
	{"id": 3, "name": "Math", "parent": 0, "coursecount": 2},
	{"id": 4, "name": "Physics", "parent": 0, "coursecount": 1}
]`

func enrollmentCaller() *fakeCaller {
	caller := newFakeCaller()
	caller.respond(moodle.FuncGetCourses, coursesFixture)
	caller.respond(moodle.FuncGetCategories, categoriesFixture)
	caller.on(moodle.FuncGetEnrolledUsers, func(params moodle.Params) moodle.Result {
		switch params["courseid"] {
		case 5:
			return moodle.Success{Payload: mustDecode(`[
				{"id": 10, "fullname": "Grace Hopper", "roles": [{"shortname": "editingteacher"}]},
				{"id": 11, "fullname": "Alan Turing", "roles": [{"shortname": "teacher"}]},
				{"id": 12, "fullname": "Ada Lovelace", "roles": [{"shortname": "student"}]},
				{"id": 13, "fullname": "Edsger Dijkstra", "roles": []}
			]`)}
		case 7:
			return &moodle.TransportError{Message: "timeout"}
		case 9:
			return moodle.Success{Payload: mustDecode(`[
				{"id": 10, "fullname": "Grace Hopper", "roles": [{"shortname": "teacher"}]},
				{"id": 14, "fullname": "Barbara Liskov", "roles": [{"shortname": "student"}]}
			]`)}
		}
		return moodle.Success{Payload: []interface{}{}}
	})
	return caller
}

func TestEnrichAll(t *testing.T) {
	caller := enrollmentCaller()
	svc := testService(t, caller)

	courses, err := svc.EnrichAll(context.Background())
	if err != nil {
		t.Fatalf("EnrichAll failed: %v", err)
	}

	if len(courses) != 3 {
		t.Fatalf("expected 3 courses, got %d", len(courses))
	}
	for i, id := range []int{5, 7, 9} {
		if courses[i].ID != id {
			t.Errorf("courses[%d].ID = %d, want %d", i, courses[i].ID, id)
		}
	}

	algebra := courses[0]
	if algebra.EnrolledStudentCount != 2 {
		t.Errorf("Algebra students = %d, want 2", algebra.EnrolledStudentCount)
	}
	if algebra.TeacherName == nil || *algebra.TeacherName != "Grace Hopper" {
		t.Errorf("Algebra teacher = %v, want Grace Hopper", algebra.TeacherName)
	}
	if algebra.TeacherCount != 2 {
		t.Errorf("Algebra teacher count = %d, want 2", algebra.TeacherCount)
	}
	if algebra.CategoryName != "Math" {
		t.Errorf("Algebra category = %q, want Math", algebra.CategoryName)
	}
	if !algebra.Visible {
		t.Error("Algebra should be visible")
	}

	mechanics := courses[1]
	if mechanics.EnrolledStudentCount != 0 || mechanics.TeacherName != nil || mechanics.TeacherCount != 0 {
		t.Errorf("failed enrollment should degrade to zero, got %+v", mechanics)
	}
	if mechanics.CategoryName != "Physics" {
		t.Errorf("Mechanics category = %q, want Physics", mechanics.CategoryName)
	}
	if mechanics.Visible {
		t.Error("Mechanics should be hidden")
	}
}

func TestEnrichAllFallsBackToCoursesByField(t *testing.T) {
	caller := newFakeCaller()
	caller.fail(moodle.FuncGetCourses)
	caller.respond(moodle.FuncGetCoursesByField, `{"courses": [
		{"id": 1, "fullname": "Site", "shortname": "site"},
		{"id": 2, "fullname": "Intro", "shortname": "INTRO", "categoryid": 8, "categoryname": "General"}
	], "warnings": []}`)
	caller.respond(moodle.FuncGetEnrolledUsers, `[]`)
	caller.respond(moodle.FuncGetCategories, `[]`)

	courses, err := testService(t, caller).EnrichAll(context.Background())
	if err != nil {
		t.Fatalf("EnrichAll failed: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != 2 {
		t.Fatalf("unexpected courses: %+v", courses)
	}
	if courses[0].CategoryName != "General" {
		t.Errorf("category = %q, want General", courses[0].CategoryName)
	}
}

func TestEnrichAllCourseListUnavailable(t *testing.T) {
	caller := newFakeCaller()
	caller.fail(moodle.FuncGetCourses)
	caller.fail(moodle.FuncGetCoursesByField)

	_, err := testService(t, caller).EnrichAll(context.Background())
	if !errors.Is(err, ErrCourseListUnavailable) {
		t.Fatalf("expected ErrCourseListUnavailable, got %v", err)
	}
}

func TestEnrichAllCategoryFailureDegrades(t *testing.T) {
	caller := enrollmentCaller()
	caller.fail(moodle.FuncGetCategories)

	courses, err := testService(t, caller).EnrichAll(context.Background())
	if err != nil {
		t.Fatalf("EnrichAll failed: %v", err)
	}
	for _, c := range courses {
		if c.CategoryName != models.UncategorizedName {
			t.Errorf("course %d category = %q, want %q", c.ID, c.CategoryName, models.UncategorizedName)
		}
	}
}

func TestEnrichAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	caller := enrollmentCaller()
	_, err := testService(t, caller).EnrichAll(ctx)
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestResolveCategoryName(t *testing.T) {
	categories := map[int]models.Category{3: {ID: 3, Name: "Math"}}

	tests := []struct {
		name       string
		categories map[int]models.Category
		course     rawCourse
		want       string
	}{
		{"category map", categories, rawCourse{categoryID: 3, categoryName: "Ignored"}, "Math"},
		{"embedded name", map[int]models.Category{}, rawCourse{categoryID: 3, categoryName: "Physics"}, "Physics"},
		{"display name", map[int]models.Category{}, rawCourse{categoryID: 3, displayName: "Science: Intro to Biology"}, "Science"},
		{"uncategorized", map[int]models.Category{}, rawCourse{categoryID: 3, displayName: "Intro to Biology"}, models.UncategorizedName},
		{"no category id", map[int]models.Category{}, rawCourse{}, models.UncategorizedName},
	}

	caller := newFakeCaller()
	caller.fail(moodle.FuncGetCategories)
	svc := testService(t, caller)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.resolveCategoryName(context.Background(), tt.course, tt.categories, newCategoryLookup(svc))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveCategoryNameLiveLookup(t *testing.T) {
	caller := newFakeCaller()
	caller.on(moodle.FuncGetCategories, func(params moodle.Params) moodle.Result {
		if id, ok := criteriaValue(params, "id"); ok && id == 42 {
			return moodle.Success{Payload: mustDecode(`[{"id": 42, "name": "Chemistry", "parent": 0}]`)}
		}
		return &moodle.MoodleError{Message: "denied"}
	})
	svc := testService(t, caller)
	lookup := newCategoryLookup(svc)

	for i := 0; i < 3; i++ {
		got := svc.resolveCategoryName(context.Background(), rawCourse{categoryID: 42}, nil, lookup)
		if got != "Chemistry" {
			t.Fatalf("got %q, want Chemistry", got)
		}
	}
	if n := caller.count(moodle.FuncGetCategories); n != 1 {
		t.Errorf("expected one memoized lookup, got %d calls", n)
	}
}

func TestApplyEnrollment(t *testing.T) {
	tests := []struct {
		name         string
		users        []models.EnrolledUser
		wantStudents int
		wantTeachers int
		wantTeacher  string
	}{
		{
			name:         "editing teacher is not a student",
			users:        []models.EnrolledUser{{ID: 1, FullName: "T", Roles: []string{"editingteacher"}}},
			wantTeachers: 1,
			wantTeacher:  "T",
		},
		{
			name:         "no roles counts as student",
			users:        []models.EnrolledUser{{ID: 2, FullName: "S", Roles: []string{}}},
			wantStudents: 1,
		},
		{
			name:  "first role decides student status",
			users: []models.EnrolledUser{{ID: 3, FullName: "M", Roles: []string{"manager", "student"}}},
		},
		{
			name: "duplicate teacher counted once",
			users: []models.EnrolledUser{
				{ID: 4, FullName: "First", Roles: []string{"teacher"}},
				{ID: 5, FullName: "Second", Roles: []string{"editingteacher"}},
				{ID: 4, FullName: "First", Roles: []string{"teacher"}},
			},
			wantTeachers: 2,
			wantTeacher:  "First",
		},
		{
			name:         "student with teacher role counts as both",
			users:        []models.EnrolledUser{{ID: 6, FullName: "Both", Roles: []string{"student", "teacher"}}},
			wantStudents: 1,
			wantTeachers: 1,
			wantTeacher:  "Both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var course models.Course
			applyEnrollment(&course, tt.users)

			if course.EnrolledStudentCount != tt.wantStudents {
				t.Errorf("students = %d, want %d", course.EnrolledStudentCount, tt.wantStudents)
			}
			if course.TeacherCount != tt.wantTeachers {
				t.Errorf("teachers = %d, want %d", course.TeacherCount, tt.wantTeachers)
			}
			switch {
			case tt.wantTeacher == "" && course.TeacherName != nil:
				t.Errorf("teacher = %q, want none", *course.TeacherName)
			case tt.wantTeacher != "" && (course.TeacherName == nil || *course.TeacherName != tt.wantTeacher):
				t.Errorf("teacher = %v, want %q", course.TeacherName, tt.wantTeacher)
			}
		})
	}
}

func TestParseEnrolledUser(t *testing.T) {
	m, _ := moodle.AsMap(mustDecode(`{"id": "31", "firstname": "Ada", "lastname": "Lovelace", "roles": ["student", {"shortname": "teacher"}, ""]}`))
	u := parseEnrolledUser(m)

	if u.ID != 31 || u.FullName != "Ada Lovelace" {
		t.Errorf("unexpected user %+v", u)
	}
	if len(u.Roles) != 2 || u.Roles[0] != "student" || u.Roles[1] != "teacher" {
		t.Errorf("unexpected roles %v", u.Roles)
	}
}
