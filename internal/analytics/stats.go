package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// ComputeStatistics returns the site-wide counts. Only a site info failure
// is returned as an error; every other count degrades to a marker.
func (s *Service) ComputeStatistics(ctx context.Context) (models.SiteStatistics, error) {
	info, err := s.SiteInfo(ctx)
	if err != nil {
		return models.SiteStatistics{}, err
	}
	return s.collectStatistics(ctx, info, s.countCourses(ctx)), nil
}

func (s *Service) collectStatistics(ctx context.Context, info SiteInfo, totalCourses models.Stat) models.SiteStatistics {
	stats := models.SiteStatistics{
		TotalCourses:    totalCourses,
		TotalCategories: s.countCategories(ctx),
		ActiveUsers:     s.countActiveUsers(ctx),
	}

	if info.UserCount != nil {
		stats.TotalUsers = models.Count(*info.UserCount)
	} else {
		stats.TotalUsers = s.countSiteUsers(ctx)
	}
	return stats
}

func (s *Service) countCourses(ctx context.Context) models.Stat {
	courses, err := s.fetchCourses(ctx)
	if err != nil {
		return models.Failed("%v", err)
	}
	return models.Count(len(courses))
}

func (s *Service) countCategories(ctx context.Context) models.Stat {
	categories, err := s.fetchCategories(ctx)
	if err != nil {
		slog.Warn("failed to count categories", "error", err)
		return models.Failed("%v", err)
	}
	return models.Count(len(categories))
}

func (s *Service) countSiteUsers(ctx context.Context) models.Stat {
	total := 0
	err := s.pageSiteUsers(ctx, func(map[string]interface{}) {
		total++
	})
	if err != nil {
		slog.Warn("failed to count site users", "error", err)
		return models.Failed("%v", err)
	}
	return models.Count(total)
}

// countActiveUsers counts distinct users active within the configured window.
// The activity log is preferred; the last access scan is the fallback.
func (s *Service) countActiveUsers(ctx context.Context) models.Stat {
	now := s.now()
	since := now.Add(-s.cfg.ActiveWindow).Unix()

	logErr := errors.New("activity log function not configured")
	if s.cfg.ActivityLogFunction != "" {
		var n int
		n, logErr = s.activeFromLog(ctx, since, now.Unix())
		if logErr == nil {
			return models.Count(n)
		}
		slog.Warn("activity log unavailable, scanning last access", "function", s.cfg.ActivityLogFunction, "error", logErr)
	}

	active := make(map[int]struct{})
	scanErr := s.pageSiteUsers(ctx, func(u map[string]interface{}) {
		last, ok := moodle.IntField(u, "lastaccess", "lastAccess")
		if !ok || int64(last) < since {
			return
		}
		if id, ok := moodle.IntField(u, "id"); ok {
			active[id] = struct{}{}
		}
	})
	if scanErr != nil {
		slog.Warn("failed to count active users", "error", scanErr)
		return models.Failed("%v", errors.Join(logErr, scanErr))
	}
	return models.Count(len(active))
}

func (s *Service) activeFromLog(ctx context.Context, since, until int64) (int, error) {
	payload, err := moodle.Payload(s.caller.Call(ctx, s.cfg.ActivityLogFunction, moodle.Params{
		"timestart": since,
		"timeend":   until,
	}))
	if err != nil {
		return 0, err
	}

	var entries []interface{}
	switch p := payload.(type) {
	case []interface{}:
		entries = p
	case map[string]interface{}:
		entries = moodle.Items(p, "logs", "entries", "records")
		if entries == nil {
			return 0, fmt.Errorf("unrecognized activity log response")
		}
	default:
		return 0, fmt.Errorf("unrecognized activity log response")
	}

	users := make(map[int]struct{})
	for _, entry := range entries {
		m, ok := moodle.AsMap(entry)
		if !ok {
			continue
		}
		if created, ok := moodle.IntField(m, "timecreated"); ok && int64(created) < since {
			continue
		}
		if id, ok := moodle.IntField(m, "userid", "userId"); ok && id > 0 {
			users[id] = struct{}{}
		}
	}
	return len(users), nil
}

// userSource is one upstream function able to list site users page by page
type userSource struct {
	function string
	params   func(offset, limit int) moodle.Params
	users    func(payload interface{}) []interface{}
}

func (s *Service) userSources() []userSource {
	return []userSource{
		{
			function: moodle.FuncGetEnrolledUsers,
			params: func(offset, limit int) moodle.Params {
				return moodle.Params{
					"courseid": models.SiteCourseID,
					"options":  moodle.Options("limitfrom", offset, "limitnumber", limit),
				}
			},
			users: func(payload interface{}) []interface{} {
				return moodle.Items(payload, "users")
			},
		},
		{
			function: moodle.FuncGetUsers,
			params: func(offset, limit int) moodle.Params {
				return moodle.Params{
					"criteria":    moodle.Criteria("email", "%"),
					"limitfrom":   offset,
					"limitnumber": limit,
				}
			},
			users: func(payload interface{}) []interface{} {
				return moodle.Items(payload, "users")
			},
		},
		{
			function: moodle.FuncGetEnrolledUsersWithCap,
			params: func(offset, limit int) moodle.Params {
				return moodle.Params{
					"coursecapabilities": []map[string]interface{}{{
						"courseid":     models.SiteCourseID,
						"capabilities": []string{"moodle/course:view"},
					}},
					"options": moodle.Options("limitfrom", offset, "limitnumber", limit),
				}
			},
			users: func(payload interface{}) []interface{} {
				var users []interface{}
				for _, group := range moodle.Items(payload, "courses") {
					if m, ok := moodle.AsMap(group); ok {
						users = append(users, moodle.Items(m["users"])...)
					}
				}
				return users
			},
		},
	}
}

type pagingError struct {
	function string
	page     int
	err      error
}

func (e *pagingError) Error() string {
	return fmt.Sprintf("%s page %d: %v", e.function, e.page, e.err)
}

func (e *pagingError) Unwrap() error {
	return e.err
}

// pageSiteUsers visits every site user once. Sources are tried in order until
// one serves its first page; a later page failing ends the walk with an error.
func (s *Service) pageSiteUsers(ctx context.Context, visit func(user map[string]interface{})) error {
	var errs []error
	for _, src := range s.userSources() {
		err := s.pageUsers(ctx, src, visit)
		if err == nil {
			return nil
		}

		var perr *pagingError
		if errors.As(err, &perr) && perr.page > 0 {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
		slog.Debug("site user source failed", "function", src.function, "error", err)
	}
	return errors.Join(errs...)
}

func (s *Service) pageUsers(ctx context.Context, src userSource, visit func(map[string]interface{})) error {
	size := s.cfg.UserPageSize
	seen := make(map[int]struct{})
	for page := 0; page < s.cfg.MaxUserPages; page++ {
		payload, err := moodle.Payload(s.caller.Call(ctx, src.function, src.params(page*size, size)))
		if err != nil {
			return &pagingError{function: src.function, page: page, err: err}
		}

		users := src.users(payload)
		added := 0
		for _, u := range users {
			m, ok := moodle.AsMap(u)
			if !ok {
				continue
			}
			if id, ok := moodle.IntField(m, "id"); ok {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			added++
			visit(m)
		}

		if len(users) > 0 && added == 0 {
			slog.Debug("user source repeated a page", "function", src.function, "page", page)
			return nil
		}
		if len(users) > size {
			slog.Debug("user source ignored page limits", "function", src.function, "returned", len(users))
			return nil
		}
		if len(users) < size {
			return nil
		}
	}

	slog.Warn("site user paging stopped at page cap",
		"function", src.function,
		"max_pages", s.cfg.MaxUserPages,
		"page_size", size,
	)
	return nil
}
