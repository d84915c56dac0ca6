package snapshots

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// StatisticsSource computes the current site statistics
type StatisticsSource interface {
	ComputeStatistics(ctx context.Context) (models.SiteStatistics, error)
}

// Recorder periodically stores statistics snapshots
type Recorder struct {
	source   StatisticsSource
	store    storage.SnapshotStore
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
}

// NewRecorder creates a new snapshot recorder
func NewRecorder(source StatisticsSource, store storage.SnapshotStore, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Recorder{
		source:   source,
		store:    store,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins recording in a goroutine
func (r *Recorder) Start(ctx context.Context) {
	go r.run(ctx)
}

// Done is closed once the recorder has stopped
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// run is the main loop for the recorder
func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	slog.Info("snapshot recorder started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Record immediately on start
	r.record(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot recorder stopped")
			return
		case <-ticker.C:
			r.record(ctx)
		}
	}
}

func (r *Recorder) record(ctx context.Context) {
	snap, err := r.RecordOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to record snapshot", "error", err)
		}
		return
	}
	slog.Debug("snapshot recorded", "id", snap.ID, "total_users", snap.Statistics.TotalUsers.String())
}

// RecordOnce computes the statistics and stores them as a new snapshot
func (r *Recorder) RecordOnce(ctx context.Context) (*models.Snapshot, error) {
	stats, err := r.source.ComputeStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	snap := &models.Snapshot{
		ID:         uuid.NewString(),
		TakenAt:    r.now().UTC(),
		Statistics: stats,
	}
	if err := r.store.Record(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
