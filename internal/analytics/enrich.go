package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// rawCourse is a course as listed by Moodle, before enrichment
type rawCourse struct {
	id           int
	fullName     string
	shortName    string
	displayName  string
	categoryID   int
	categoryName string
	visible      bool
}

// fetchCourses lists every course except the site course. The by-field
// listing is tried when the plain listing fails; both failing is fatal.
func (s *Service) fetchCourses(ctx context.Context) ([]rawCourse, error) {
	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncGetCourses, nil))
	if err != nil {
		slog.Warn("course listing failed, trying listing by field", "error", err)

		var fallbackErr error
		payload, fallbackErr = moodle.Payload(s.caller.Call(ctx, moodle.FuncGetCoursesByField, moodle.Params{
			"field": "",
			"value": "",
		}))
		if fallbackErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCourseListUnavailable, fallbackErr)
		}
	}

	items := moodle.Items(payload, "courses")
	courses := make([]rawCourse, 0, len(items))
	for _, item := range items {
		m, ok := moodle.AsMap(item)
		if !ok {
			continue
		}
		c, ok := parseCourse(m)
		if !ok || c.id <= models.SiteCourseID {
			continue
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func parseCourse(m map[string]interface{}) (rawCourse, bool) {
	id, ok := moodle.IntField(m, "id")
	if !ok {
		return rawCourse{}, false
	}

	c := rawCourse{
		id:           id,
		fullName:     moodle.StringField(m, "fullname"),
		shortName:    moodle.StringField(m, "shortname"),
		displayName:  moodle.StringField(m, "displayname", "fullname"),
		categoryName: moodle.StringField(m, "categoryname"),
		visible:      true,
	}
	c.categoryID, _ = moodle.IntField(m, "categoryid", "category")
	if v, ok := moodle.IntField(m, "visible"); ok {
		c.visible = v != 0
	}
	return c, true
}

// EnrichAll lists courses and decorates each with enrollment and category
// data. Enrollment fetches run with bounded concurrency; the result keeps
// the listing order.
func (s *Service) EnrichAll(ctx context.Context) ([]models.Course, error) {
	raw, err := s.fetchCourses(ctx)
	if err != nil {
		return nil, err
	}

	categories := s.ResolveCategories(ctx)
	lookup := newCategoryLookup(s)

	courses := make([]models.Course, len(raw))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, rc := range raw {
		i, rc := i, rc
		g.Go(func() error {
			courses[i] = s.enrichCourse(ctx, rc, categories, lookup)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("courses enriched", "count", len(courses), "categories", len(categories))
	return courses, nil
}

func (s *Service) enrichCourse(ctx context.Context, rc rawCourse, categories map[int]models.Category, lookup *categoryLookup) models.Course {
	course := models.Course{
		ID:         rc.id,
		FullName:   rc.fullName,
		ShortName:  rc.shortName,
		CategoryID: rc.categoryID,
		Visible:    rc.visible,
	}

	users, err := s.EnrolledUsers(ctx, rc.id)
	if err != nil {
		slog.Warn("failed to fetch enrolled users", "course", rc.id, "error", err)
	} else {
		applyEnrollment(&course, users)
	}

	course.CategoryName = s.resolveCategoryName(ctx, rc, categories, lookup)
	return course
}

// EnrolledUsers returns the users enrolled in a course with their role shortnames
func (s *Service) EnrolledUsers(ctx context.Context, courseID int) ([]models.EnrolledUser, error) {
	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncGetEnrolledUsers, moodle.Params{
		"courseid": courseID,
	}))
	if err != nil {
		return nil, err
	}

	items := moodle.Items(payload, "users")
	users := make([]models.EnrolledUser, 0, len(items))
	for _, item := range items {
		m, ok := moodle.AsMap(item)
		if !ok {
			continue
		}
		users = append(users, parseEnrolledUser(m))
	}
	return users, nil
}

func parseEnrolledUser(m map[string]interface{}) models.EnrolledUser {
	u := models.EnrolledUser{
		FullName: moodle.StringField(m, "fullname"),
		Roles:    []string{},
	}
	u.ID, _ = moodle.IntField(m, "id")
	if u.FullName == "" {
		u.FullName = strings.TrimSpace(moodle.StringField(m, "firstname") + " " + moodle.StringField(m, "lastname"))
	}

	roles, _ := m["roles"].([]interface{})
	for _, role := range roles {
		var shortname string
		if rm, ok := moodle.AsMap(role); ok {
			shortname = moodle.StringField(rm, "shortname")
		} else {
			shortname = strings.TrimSpace(moodle.String(role))
		}
		if shortname != "" {
			u.Roles = append(u.Roles, shortname)
		}
	}
	return u
}

// applyEnrollment counts students and records the course teachers.
// The first teacher in enrollment order becomes the representative one.
// Teacher and student checks are independent of each other.
func applyEnrollment(course *models.Course, users []models.EnrolledUser) {
	teachers := make(map[string]bool)
	for _, u := range users {
		if key := teacherKey(u); u.IsTeacher() && !teachers[key] {
			teachers[key] = true
			if course.TeacherName == nil {
				name := u.FullName
				course.TeacherName = &name
			}
			if u.ID > 0 {
				course.TeacherIDs = append(course.TeacherIDs, u.ID)
			}
		}
		if u.IsStudent() {
			course.EnrolledStudentCount++
		}
	}
	course.TeacherCount = len(teachers)
}

func teacherKey(u models.EnrolledUser) string {
	if u.ID > 0 {
		return strconv.Itoa(u.ID)
	}
	return "name:" + u.FullName
}

// resolveCategoryName tries, in order: the resolved category map, the
// course's own category name, a "Category: Course" display name, a live
// lookup by id. It falls back to UncategorizedName.
func (s *Service) resolveCategoryName(ctx context.Context, rc rawCourse, categories map[int]models.Category, lookup *categoryLookup) string {
	if c, ok := categories[rc.categoryID]; ok && c.Name != "" {
		return c.Name
	}
	if rc.categoryName != "" {
		return rc.categoryName
	}
	if name := categoryFromDisplayName(rc.displayName); name != "" {
		return name
	}
	if rc.categoryID > 0 && lookup != nil {
		if name := lookup.name(ctx, rc.categoryID); name != "" {
			return name
		}
	}
	return models.UncategorizedName
}

func categoryFromDisplayName(displayName string) string {
	prefix, _, found := strings.Cut(displayName, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(prefix)
}
