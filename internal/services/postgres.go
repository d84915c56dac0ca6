package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// PostgresProvider probes the reporting database over database/sql
type PostgresProvider struct {
	BaseProvider
	db     *sql.DB
	prefix string
}

// NewPostgresProvider opens a handle on the reporting database. The
// connection is established lazily by the first probe.
func NewPostgresProvider(dsn, tablePrefix string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Minute)

	return &PostgresProvider{
		BaseProvider: BaseProvider{serviceType: "postgres"},
		db:           db,
		prefix:       tablePrefix,
	}, nil
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	return storage.WrapConnError(p.db.PingContext(ctx))
}

// Diagnose reports the server version, the connected database and user,
// and how many tables carry the Moodle prefix
func (p *PostgresProvider) Diagnose(ctx context.Context) (map[string]string, error) {
	var version, database, user string
	err := p.db.QueryRowContext(ctx, `SELECT version(), current_database(), current_user`).
		Scan(&version, &database, &user)
	if err != nil {
		return nil, storage.WrapConnError(err)
	}

	var tables int
	err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name LIKE $1`,
		likePrefix(p.prefix),
	).Scan(&tables)
	if err != nil {
		return nil, storage.WrapConnError(err)
	}

	if tables == 0 {
		return nil, &storage.ConnError{
			Cause: storage.FailureMissingSchema,
			Err:   fmt.Errorf("no tables with prefix %q in database %s", p.prefix, database),
		}
	}

	return map[string]string{
		"version":  version,
		"database": database,
		"user":     user,
		"tables":   strconv.Itoa(tables),
	}, nil
}

// Close closes the database handle
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// likePrefix builds a LIKE pattern matching names that start with prefix
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
