package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/config"
	"github.com/jask/tileswipe/internal/database"
	"github.com/jask/tileswipe/internal/database/repository"
	"github.com/jask/tileswipe/internal/kv"
	"github.com/jask/tileswipe/internal/session"
	"github.com/jask/tileswipe/internal/tilesvc"
)

// openStore returns the configured durable store and its cleanup.
func openStore(ctx context.Context, c config.StorageConfig, log *zap.Logger) (kv.Store, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		store   kv.Store
		cleanup = func() {}
	)
	switch c.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		if err := database.RunMigrations(c.Path); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		repo := repository.NewKVRepo(db)
		logPersisted(ctx, repo, log)
		store = repo
		cleanup = func() { _ = db.Close() }
	case config.BackendRedis:
		r := kv.OpenRedis(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", c.RedisAddr, err)
		}
		store = r
		cleanup = func() { _ = r.Close() }
	case config.BackendMemory:
		store = kv.NewMemory()
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if c.KeyPrefix != "" {
		store = kv.Prefixed{Store: store, Prefix: c.KeyPrefix}
	}
	return store, cleanup, nil
}

// logPersisted reports what a previous run left in the sqlite store.
func logPersisted(ctx context.Context, repo *repository.KVRepo, log *zap.Logger) {
	entries, err := repo.List(ctx)
	if err != nil {
		log.Warn("list persisted keys", zap.Error(err))
		return
	}
	for _, e := range entries {
		log.Debug("persisted key",
			zap.String("key", e.Key),
			zap.Int("bytes", len(e.Value)),
			zap.Time("updated_at", e.UpdatedAt))
	}
}

// buildRequest reads the AOI file. A missing AOI is a config load failure.
func buildRequest(src config.SourceConfig) (tilesvc.Request, error) {
	if src.AOIPath == "" {
		return tilesvc.Request{}, fmt.Errorf("%w: no area of interest (set source.aoi_path or --aoi)", session.ErrConfigLoad)
	}
	data, err := os.ReadFile(src.AOIPath)
	if err != nil {
		return tilesvc.Request{}, fmt.Errorf("%w: %w", session.ErrConfigLoad, err)
	}
	if !json.Valid(data) {
		return tilesvc.Request{}, fmt.Errorf("%w: %s is not valid json", session.ErrConfigLoad, src.AOIPath)
	}
	return tilesvc.Request{AOI: json.RawMessage(data), Zoom: src.Zoom, MiniGrid: src.MiniGrid}, nil
}
