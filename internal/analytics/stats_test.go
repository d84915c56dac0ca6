package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

const activityLogFunction = "report_log_get_log_records"

// pagedUsers serves total users through limitfrom/limitnumber options
func pagedUsers(total int) func(moodle.Params) moodle.Result {
	return func(params moodle.Params) moodle.Result {
		from := optionValue(params, "limitfrom")
		limit := optionValue(params, "limitnumber")
		users := []interface{}{}
		for id := from; id < total && id < from+limit; id++ {
			users = append(users, map[string]interface{}{"id": id + 100})
		}
		return moodle.Success{Payload: users}
	}
}

func TestComputeStatistics(t *testing.T) {
	caller := enrollmentCaller()
	caller.respond(moodle.FuncSiteInfo, `{"sitename": "Campus", "usercount": 120}`)
	caller.respond(activityLogFunction, `{"logs": [{"userid": 1}, {"userid": 2}, {"userid": 1}]}`)

	stats, err := testService(t, caller).ComputeStatistics(context.Background())
	if err != nil {
		t.Fatalf("ComputeStatistics failed: %v", err)
	}

	checks := map[string]struct {
		got  string
		want string
	}{
		"total users":      {stats.TotalUsers.String(), "120"},
		"active users":     {stats.ActiveUsers.String(), "2"},
		"total courses":    {stats.TotalCourses.String(), "3"},
		"total categories": {stats.TotalCategories.String(), "2"},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", name, c.got, c.want)
		}
	}
	if caller.count(moodle.FuncGetEnrolledUsers) != 0 {
		t.Error("site user paging should be skipped when usercount is present")
	}
}

func TestComputeStatisticsSiteInfoUnavailable(t *testing.T) {
	caller := enrollmentCaller()
	caller.fail(moodle.FuncSiteInfo)

	_, err := testService(t, caller).ComputeStatistics(context.Background())
	if !errors.Is(err, ErrSiteInfoUnavailable) {
		t.Fatalf("expected ErrSiteInfoUnavailable, got %v", err)
	}
}

func TestComputeStatisticsDegradedCounts(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(moodle.FuncSiteInfo, `{"sitename": "Campus"}`)
	caller.fail(moodle.FuncGetCourses)
	caller.fail(moodle.FuncGetCoursesByField)
	caller.fail(moodle.FuncGetCategories)
	caller.respond(activityLogFunction, `[]`)
	caller.on(moodle.FuncGetEnrolledUsers, pagedUsers(4))

	stats, err := testService(t, caller).ComputeStatistics(context.Background())
	if err != nil {
		t.Fatalf("ComputeStatistics failed: %v", err)
	}

	if stats.TotalCourses.OK() || !strings.HasPrefix(stats.TotalCourses.Marker, "Error: ") {
		t.Errorf("total courses should carry an error marker, got %v", stats.TotalCourses)
	}
	if stats.TotalCategories.OK() {
		t.Errorf("total categories should carry an error marker, got %v", stats.TotalCategories)
	}
	if !stats.ActiveUsers.OK() || stats.ActiveUsers.Value != 0 {
		t.Errorf("an empty activity log is a zero count, got %v", stats.ActiveUsers)
	}
	if !stats.TotalUsers.OK() || stats.TotalUsers.Value != 4 {
		t.Errorf("total users = %v, want 4", stats.TotalUsers)
	}
}

func TestCountSiteUsersPagesUntilShortPage(t *testing.T) {
	caller := newFakeCaller()
	caller.on(moodle.FuncGetEnrolledUsers, pagedUsers(7))

	svc := testService(t, caller)
	svc.cfg.UserPageSize = 3

	if got := svc.countSiteUsers(context.Background()); !got.OK() || got.Value != 7 {
		t.Fatalf("total = %v, want 7", got)
	}
	if n := caller.count(moodle.FuncGetEnrolledUsers); n != 3 {
		t.Errorf("expected 3 pages, got %d", n)
	}
}

func TestCountSiteUsersStopsAtPageCap(t *testing.T) {
	caller := newFakeCaller()
	caller.on(moodle.FuncGetEnrolledUsers, func(params moodle.Params) moodle.Result {
		from := optionValue(params, "limitfrom")
		limit := optionValue(params, "limitnumber")
		users := make([]interface{}, limit)
		for i := range users {
			users[i] = map[string]interface{}{"id": from + i + 2}
		}
		return moodle.Success{Payload: users}
	})

	svc := testService(t, caller)
	svc.cfg.UserPageSize = 10
	svc.cfg.MaxUserPages = 5

	got := svc.countSiteUsers(context.Background())
	if !got.OK() || got.Value != 50 {
		t.Fatalf("total = %v, want partial count 50", got)
	}
	if n := caller.count(moodle.FuncGetEnrolledUsers); n != 5 {
		t.Errorf("expected paging to stop after 5 pages, got %d", n)
	}
}

func TestCountSiteUsersStopsOnRepeatedPage(t *testing.T) {
	caller := newFakeCaller()
	caller.fail(moodle.FuncGetEnrolledUsers)
	caller.respond(moodle.FuncGetUsers, `{"users": [{"id": 2}, {"id": 3}, {"id": 4}], "warnings": []}`)

	svc := testService(t, caller)
	svc.cfg.UserPageSize = 3

	got := svc.countSiteUsers(context.Background())
	if !got.OK() || got.Value != 3 {
		t.Fatalf("total = %v, want 3 distinct users", got)
	}
	if n := caller.count(moodle.FuncGetUsers); n != 2 {
		t.Errorf("expected paging to stop after the repeated page, got %d calls", n)
	}
}

func TestCountSiteUsersCountsDistinctIDs(t *testing.T) {
	caller := newFakeCaller()
	pages := [][]int{{2, 3, 4}, {4, 5, 6}, {7}}
	caller.on(moodle.FuncGetEnrolledUsers, func(params moodle.Params) moodle.Result {
		page := optionValue(params, "limitfrom") / 3
		users := []interface{}{}
		if page < len(pages) {
			for _, id := range pages[page] {
				users = append(users, map[string]interface{}{"id": id})
			}
		}
		return moodle.Success{Payload: users}
	})

	svc := testService(t, caller)
	svc.cfg.UserPageSize = 3

	got := svc.countSiteUsers(context.Background())
	if !got.OK() || got.Value != 6 {
		t.Fatalf("total = %v, want 6", got)
	}
}

func TestCountSiteUsersFallsBackToNextSource(t *testing.T) {
	caller := newFakeCaller()
	caller.fail(moodle.FuncGetEnrolledUsers)
	caller.respond(moodle.FuncGetUsers, `{"users": [{"id": 2}, {"id": 3}], "warnings": []}`)

	got := testService(t, caller).countSiteUsers(context.Background())
	if !got.OK() || got.Value != 2 {
		t.Fatalf("total = %v, want 2", got)
	}
	if caller.count(moodle.FuncGetEnrolledUsersWithCap) != 0 {
		t.Error("third source should not be called")
	}
}

func TestCountSiteUsersCapabilitySource(t *testing.T) {
	caller := newFakeCaller()
	caller.fail(moodle.FuncGetEnrolledUsers)
	caller.fail(moodle.FuncGetUsers)
	caller.respond(moodle.FuncGetEnrolledUsersWithCap, `[{"courseid": 1, "capability": "moodle/course:view", "users": [{"id": 2}, {"id": 3}, {"id": 4}]}]`)

	got := testService(t, caller).countSiteUsers(context.Background())
	if !got.OK() || got.Value != 3 {
		t.Fatalf("total = %v, want 3", got)
	}
}

func TestCountSiteUsersLaterPageFailure(t *testing.T) {
	caller := newFakeCaller()
	caller.on(moodle.FuncGetEnrolledUsers, func(params moodle.Params) moodle.Result {
		if optionValue(params, "limitfrom") > 0 {
			return &moodle.TransportError{Message: "reset by peer"}
		}
		return pagedUsers(100)(params)
	})

	svc := testService(t, caller)
	svc.cfg.UserPageSize = 10

	got := svc.countSiteUsers(context.Background())
	if got.OK() {
		t.Fatalf("expected an error marker, got %v", got)
	}
	if caller.count(moodle.FuncGetUsers) != 0 {
		t.Error("a partially read source must not fall back to the next one")
	}
}

func TestCountActiveUsers(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fakeCaller, now int64)
		want    string
		wantErr bool
	}{
		{
			name: "activity log",
			setup: func(f *fakeCaller, now int64) {
				f.respond(activityLogFunction, fmt.Sprintf(`[
					{"userid": 5, "timecreated": %d},
					{"userid": 5, "timecreated": %d},
					{"userid": 6, "timecreated": %d},
					{"userid": 7, "timecreated": %d}
				]`, now-10, now-20, now-30, now-7200))
			},
			want: "2",
		},
		{
			name: "last access fallback",
			setup: func(f *fakeCaller, now int64) {
				f.fail(activityLogFunction)
				f.respond(moodle.FuncGetEnrolledUsers, fmt.Sprintf(`[
					{"id": 2, "lastaccess": %d},
					{"id": 3, "lastaccess": %d},
					{"id": 4}
				]`, now-60, now-7200))
			},
			want: "1",
		},
		{
			name: "unrecognized log shape falls back",
			setup: func(f *fakeCaller, now int64) {
				f.respond(activityLogFunction, `{"unexpected": true}`)
				f.respond(moodle.FuncGetEnrolledUsers, fmt.Sprintf(`[{"id": 2, "lastaccess": %d}]`, now))
			},
			want: "1",
		},
		{
			name: "everything fails",
			setup: func(f *fakeCaller, now int64) {
				f.fail(activityLogFunction)
				f.fail(moodle.FuncGetEnrolledUsers)
				f.fail(moodle.FuncGetUsers)
				f.fail(moodle.FuncGetEnrolledUsersWithCap)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newFakeCaller()
			svc := testService(t, caller)
			tt.setup(caller, svc.now().Unix())

			got := svc.countActiveUsers(context.Background())
			if tt.wantErr {
				if got.OK() {
					t.Fatalf("expected an error marker, got %v", got)
				}
				return
			}
			if got.String() != tt.want {
				t.Errorf("active users = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestSiteInfo(t *testing.T) {
	caller := newFakeCaller()
	caller.respond(moodle.FuncSiteInfo, `{"sitename": "Campus", "release": "4.1", "userid": "2"}`)

	info, err := testService(t, caller).SiteInfo(context.Background())
	if err != nil {
		t.Fatalf("SiteInfo failed: %v", err)
	}
	if info.SiteName != "Campus" || info.Release != "4.1" || info.UserID != 2 {
		t.Errorf("unexpected site info %+v", info)
	}
	if info.UserCount != nil {
		t.Errorf("usercount should be absent, got %d", *info.UserCount)
	}

	caller.respond(moodle.FuncSiteInfo, `{}`)
	if _, err := testService(t, caller).SiteInfo(context.Background()); !errors.Is(err, ErrSiteInfoUnavailable) {
		t.Errorf("empty site info should fail, got %v", err)
	}
}
