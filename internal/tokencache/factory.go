package tokencache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"momentshub/internal/config"
	"momentshub/internal/hub"
)

// Cache is a hub.TokenCache that can be emptied and closed.
type Cache interface {
	hub.TokenCache
	Clear(ctx context.Context) error
	Close() error
}

// NewCacheFromConfig creates a Cache implementation based on the cache config type.
func NewCacheFromConfig(cfg config.CacheConfig, scope string) (Cache, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite cache")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		return NewSQLiteCache(filepath.Join(cfg.DataDir, "tokens.db"), scope)
	case "memory":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
