package services

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisProvider probes the Redis instance holding the statistics history
type RedisProvider struct {
	BaseProvider
	client     *redis.Client
	historyKey string
}

// NewRedisProvider creates a new Redis provider
func NewRedisProvider(address, password string, db int, historyKey string) *RedisProvider {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	return &RedisProvider{
		BaseProvider: BaseProvider{serviceType: "redis"},
		client:       client,
		historyKey:   historyKey,
	}
}

// HealthCheck verifies Redis connectivity
func (p *RedisProvider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Diagnose reports the server version and the history length
func (p *RedisProvider) Diagnose(ctx context.Context) (map[string]string, error) {
	info, err := p.client.Info(ctx, "server").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read server info: %w", err)
	}

	length, err := p.client.LLen(ctx, p.historyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history length: %w", err)
	}

	return map[string]string{
		"version":         infoField(info, "redis_version"),
		"mode":            infoField(info, "redis_mode"),
		"history_key":     p.historyKey,
		"history_entries": strconv.FormatInt(length, 10),
	}, nil
}

// Close closes the Redis connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// infoField reads one "name:value" line of an INFO reply
func infoField(info, name string) string {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if found && key == name {
			return value
		}
	}
	return ""
}
