package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// RedisSnapshotStore implements SnapshotStore as a capped Redis list
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
	limit  int
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
	Limit    int
}

// NewRedisSnapshotStore connects to Redis and verifies the connection
func NewRedisSnapshotStore(ctx context.Context, cfg RedisConfig) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	limit := cfg.Limit
	if limit < 1 {
		limit = 288
	}

	return &RedisSnapshotStore{
		client: client,
		key:    cfg.Key,
		limit:  limit,
	}, nil
}

// Record prepends a snapshot and trims the list to the configured limit
func (s *RedisSnapshotStore) Record(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// Recent returns up to limit snapshots, newest first.
// Entries that no longer decode are skipped.
func (s *RedisSnapshotStore) Recent(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	if limit < 1 || limit > s.limit {
		limit = s.limit
	}

	values, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	snapshots := make([]*models.Snapshot, 0, len(values))
	for _, v := range values {
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(v), &snap); err != nil {
			slog.Warn("skipping unreadable snapshot", "key", s.key, "error", err)
			continue
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, nil
}

// Ping checks Redis connectivity
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
