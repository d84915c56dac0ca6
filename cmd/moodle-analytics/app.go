package main

import (
	"context"
	"log/slog"

	"github.com/terra-clan/moodle-analytics/internal/analytics"
	"github.com/terra-clan/moodle-analytics/internal/config"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
	"github.com/terra-clan/moodle-analytics/internal/services"
	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg       *config.Config
	service   *analytics.Service
	registry  *services.Registry
	reporting storage.StatisticsReader
	history   storage.SnapshotStore
	closers   []func() error
}

// newApp builds the Moodle client and dependency probes. The reporting
// database and snapshot history are optional; a connection failure is
// logged and the feature stays disabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	caller := moodle.NewClient(cfg.Moodle)

	a := &app{
		cfg:      cfg,
		service:  analytics.NewService(caller, cfg.Analytics),
		registry: services.NewRegistry(),
	}

	a.registry.Register("moodle", services.NewMoodleProvider(caller))

	if cfg.Reporting.Enabled() {
		probe, err := services.NewPostgresProvider(cfg.Reporting.DSN, cfg.Reporting.TablePrefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.registry.Register("reporting", probe)
		a.closers = append(a.closers, probe.Close)

		db, err := storage.NewReportingDB(ctx, storage.PostgresConfig{
			DSN:            cfg.Reporting.DSN,
			TablePrefix:    cfg.Reporting.TablePrefix,
			MaxConns:       int32(cfg.Reporting.MaxConns),
			ConnectTimeout: cfg.Reporting.ConnectTimeout,
			ActiveWindow:   cfg.Reporting.ActiveWindow,
		})
		if err != nil {
			slog.Warn("reporting database unavailable", "error", err)
		} else {
			a.reporting = db
			a.closers = append(a.closers, db.Close)
			slog.Info("reporting database connected")
		}
	}

	if cfg.Redis.Enabled() {
		probe := services.NewRedisProvider(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.HistoryKey)
		a.registry.Register("redis", probe)
		a.closers = append(a.closers, probe.Close)

		store, err := storage.NewRedisSnapshotStore(ctx, storage.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.HistoryKey,
			Limit:    cfg.Redis.HistoryLimit,
		})
		if err != nil {
			slog.Warn("snapshot history unavailable", "error", err)
		} else {
			a.history = store
			a.closers = append(a.closers, store.Close)
			slog.Info("snapshot history connected", "key", cfg.Redis.HistoryKey)
		}
	}

	return a, nil
}

// Close releases every opened connection
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("close error", "error", err)
		}
	}
	a.closers = nil
}
