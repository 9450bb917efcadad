package checkpoint

import (
	"context"
	"fmt"

	"igcrawler/pkg/config"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/nodeiter"
)

// Backend hands out per-target snapshot stores
type Backend interface {
	ForTarget(base string) nodeiter.SnapshotStore
	Close() error
}

// Open builds the backend selected by cfg.Resume.Backend ("file" or "redis")
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Backend, error) {
	switch cfg.Resume.Backend {
	case "", "file":
		store, err := NewFileStore(FileOptions{
			Directory: cfg.Resume.Directory,
			Prefix:    cfg.Resume.Prefix,
			Compress:  cfg.Resume.Compress,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix + ":" + cfg.Resume.Prefix,
			TTL:      cfg.Redis.TTL,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown resume backend %q", cfg.Resume.Backend)
	}
}
