package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// guestUserID is the built-in guest account, excluded from user counts
const guestUserID = 1

// ReportingDB implements StatisticsReader against a Moodle PostgreSQL database
type ReportingDB struct {
	pool         *pgxpool.Pool
	prefix       string
	activeWindow time.Duration
	now          func() time.Time
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN            string
	TablePrefix    string
	MaxConns       int32
	ConnectTimeout time.Duration
	MaxLifetime    time.Duration
	ActiveWindow   time.Duration
}

// NewReportingDB connects to the Moodle database. Connection failures are
// returned as *ConnError.
func NewReportingDB(ctx context.Context, cfg PostgresConfig) (*ReportingDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", WrapConnError(err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", WrapConnError(err))
	}

	window := cfg.ActiveWindow
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	return &ReportingDB{
		pool:         pool,
		prefix:       cfg.TablePrefix,
		activeWindow: window,
		now:          time.Now,
	}, nil
}

// Ping checks database connectivity
func (r *ReportingDB) Ping(ctx context.Context) error {
	return WrapConnError(r.pool.Ping(ctx))
}

// Close closes the database connection pool
func (r *ReportingDB) Close() error {
	r.pool.Close()
	return nil
}

// Statistics counts users, active users, courses, categories and enrollments.
// A failing count is reported as unavailable; only a lost connection fails the call.
func (r *ReportingDB) Statistics(ctx context.Context) (models.SiteStatistics, error) {
	if err := r.Ping(ctx); err != nil {
		return models.SiteStatistics{}, err
	}

	cutoff := r.now().Add(-r.activeWindow).Unix()
	enrollments := r.count(ctx, "total enrollments", countEnrollmentsQuery(r.prefix))

	return models.SiteStatistics{
		TotalUsers:       r.count(ctx, "total users", countUsersQuery(r.prefix), guestUserID),
		ActiveUsers:      r.count(ctx, "active users", countActiveUsersQuery(r.prefix), cutoff),
		TotalCourses:     r.count(ctx, "total courses", countCoursesQuery(r.prefix), models.SiteCourseID),
		TotalCategories:  r.count(ctx, "total categories", countCategoriesQuery(r.prefix)),
		TotalEnrollments: &enrollments,
	}, nil
}

func (r *ReportingDB) count(ctx context.Context, name, query string, args ...interface{}) models.Stat {
	var n int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		slog.Warn("reporting query failed", "stat", name, "error", err)
		return models.Unavailable()
	}
	return models.Count(int(n))
}

// table quotes a Moodle table name with the configured prefix
func table(prefix, name string) string {
	return pgx.Identifier{prefix + name}.Sanitize()
}

func countUsersQuery(prefix string) string {
	return `SELECT COUNT(*) FROM ` + table(prefix, "user") + ` WHERE deleted = 0 AND id > $1`
}

func countActiveUsersQuery(prefix string) string {
	return `SELECT COUNT(DISTINCT userid) FROM ` + table(prefix, "user_lastaccess") + ` WHERE timeaccess > $1`
}

func countCoursesQuery(prefix string) string {
	return `SELECT COUNT(*) FROM ` + table(prefix, "course") + ` WHERE id > $1`
}

func countCategoriesQuery(prefix string) string {
	return `SELECT COUNT(*) FROM ` + table(prefix, "course_categories")
}

func countEnrollmentsQuery(prefix string) string {
	return `SELECT COUNT(*) FROM ` + table(prefix, "user_enrolments")
}
