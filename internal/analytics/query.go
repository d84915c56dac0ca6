package analytics

import (
	"math"
	"strings"
	"unicode"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// DefaultPerPage is used when a page size below one is requested
const DefaultPerPage = 10

// Filter narrows the course list. Zero values match everything.
type Filter struct {
	Query           string
	CategoryID      int
	ShortNamePrefix string
}

// Search returns the courses matching f in their original order.
// Query matching is a case-insensitive substring test against the full name,
// short name, category name and teacher name.
func Search(courses []models.Course, f Filter) []models.Course {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Course, 0, len(courses))
	for i := range courses {
		c := &courses[i]
		if c.ID <= models.SiteCourseID {
			continue
		}
		if f.CategoryID != 0 && c.CategoryID != f.CategoryID {
			continue
		}
		if !c.HasShortNamePrefix(f.ShortNamePrefix) {
			continue
		}
		if query != "" && !matches(c, query) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func matches(c *models.Course, query string) bool {
	fields := []string{c.FullName, c.ShortName, c.CategoryName}
	if c.TeacherName != nil {
		fields = append(fields, *c.TeacherName)
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Paginate slices courses into a 1-indexed page. Pages past the end are
// returned empty rather than clamped.
func Paginate(courses []models.Course, page, perPage int) models.Page {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}

	total := len(courses)
	lastPage := total / perPage
	if total%perPage != 0 {
		lastPage++
	}

	p := models.Pagination{
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}

	items := []models.Course{}
	if page-1 >= lastPage {
		// Past the end. The offset saturates so from stays positive.
		offset := math.MaxInt - 1
		if page-1 <= (math.MaxInt-1)/perPage {
			offset = (page - 1) * perPage
		}
		if total > 0 {
			p.From = offset + 1
		}
		p.To = total
		return models.Page{Items: items, Pagination: p}
	}

	offset := (page - 1) * perPage
	end := offset + perPage
	if end > total {
		end = total
	}
	items = courses[offset:end]
	p.From = offset + 1
	p.To = end
	return models.Page{Items: items, Pagination: p}
}

// ParseID reads the leading integer of s the way loosely typed query
// parameters are usually read: "12abc" is 12 and anything without leading
// digits is 0.
func ParseID(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	sign := 1
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > 1<<31 {
			return 0
		}
	}
	return sign * n
}
