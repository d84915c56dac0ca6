package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/config"
	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// Common errors
var (
	ErrCourseListUnavailable = errors.New("course list unavailable")
	ErrSiteInfoUnavailable   = errors.New("site info unavailable")
)

// Dashboard defines the read operations behind the HTTP API
type Dashboard interface {
	Categories(ctx context.Context) ([]models.CategoryEntry, error)
	Courses(ctx context.Context, filter Filter, page, perPage int) (models.Page, error)
	TopCourses(ctx context.Context, limit int) ([]models.RankedCourse, error)
	Overview(ctx context.Context) (models.Overview, error)
	ComputeStatistics(ctx context.Context) (models.SiteStatistics, error)
}

// SiteInfo is the subset of core_webservice_get_site_info the dashboard uses
type SiteInfo struct {
	SiteName  string `json:"sitename"`
	Release   string `json:"release,omitempty"`
	Version   string `json:"version,omitempty"`
	UserID    int    `json:"userid,omitempty"`
	UserCount *int   `json:"usercount,omitempty"`
}

// Service aggregates Moodle web-service data into dashboard models.
// It holds no per-request state: every call rebuilds categories and courses.
type Service struct {
	caller moodle.Caller
	cfg    config.AnalyticsConfig
	now    func() time.Time
}

// NewService creates a new Service
func NewService(caller moodle.Caller, cfg config.AnalyticsConfig) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.UserPageSize < 1 {
		cfg.UserPageSize = config.Default().Analytics.UserPageSize
	}
	if cfg.MaxUserPages < 1 {
		cfg.MaxUserPages = config.Default().Analytics.MaxUserPages
	}
	if cfg.MaxCategoryDepth < 1 {
		cfg.MaxCategoryDepth = config.Default().Analytics.MaxCategoryDepth
	}
	return &Service{
		caller: caller,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SiteInfo fetches the site description. It is the only call besides the
// course listing whose failure fails the request.
func (s *Service) SiteInfo(ctx context.Context) (SiteInfo, error) {
	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncSiteInfo, nil))
	if err != nil {
		return SiteInfo{}, fmt.Errorf("%w: %w", ErrSiteInfoUnavailable, err)
	}

	m, ok := moodle.AsMap(payload)
	if !ok || len(m) == 0 {
		return SiteInfo{}, fmt.Errorf("%w: empty site info response", ErrSiteInfoUnavailable)
	}

	info := SiteInfo{
		SiteName: moodle.StringField(m, "sitename"),
		Release:  moodle.StringField(m, "release"),
		Version:  moodle.StringField(m, "version"),
	}
	info.UserID, _ = moodle.IntField(m, "userid")
	if n, ok := moodle.IntField(m, "usercount", "userCount"); ok {
		info.UserCount = &n
	}
	return info, nil
}

// Courses returns one page of the enriched course list matching filter
func (s *Service) Courses(ctx context.Context, filter Filter, page, perPage int) (models.Page, error) {
	courses, err := s.EnrichAll(ctx)
	if err != nil {
		return models.Page{}, err
	}
	return Paginate(Search(courses, filter), page, perPage), nil
}

// TopCourses returns the limit courses with the most enrolled students
func (s *Service) TopCourses(ctx context.Context, limit int) ([]models.RankedCourse, error) {
	courses, err := s.EnrichAll(ctx)
	if err != nil {
		return nil, err
	}
	return TopEnrolled(courses, limit), nil
}

// Overview builds the full statistics payload: site counts, teacher totals,
// the short-course summary and the enrollment ranking.
func (s *Service) Overview(ctx context.Context) (models.Overview, error) {
	info, err := s.SiteInfo(ctx)
	if err != nil {
		return models.Overview{}, err
	}

	courses, err := s.EnrichAll(ctx)
	if err != nil {
		return models.Overview{}, err
	}

	stats := s.collectStatistics(ctx, info, models.Count(len(courses)))

	return models.Overview{
		SiteName:      info.SiteName,
		Statistics:    stats,
		TotalTeachers: CountTeachers(courses),
		ShortCourses:  SummarizeShortCourses(courses, s.cfg.ShortCoursePrefix),
		TopCourses:    TopEnrolled(courses, s.cfg.TopCourses),
		GeneratedAt:   s.now().UTC(),
	}, nil
}
