package storage

import (
	"context"
	"errors"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// ErrReportingDisabled is returned when no reporting database is configured
var ErrReportingDisabled = errors.New("reporting database not configured")

// StatisticsReader reads site counts straight from the Moodle database
type StatisticsReader interface {
	Statistics(ctx context.Context) (models.SiteStatistics, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// SnapshotStore keeps a bounded history of statistics snapshots, newest first
type SnapshotStore interface {
	Record(ctx context.Context, snapshot *models.Snapshot) error
	Recent(ctx context.Context, limit int) ([]*models.Snapshot, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
