package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/chococrunch/pipeline/config"
	"github.com/chococrunch/pipeline/internal/domain"
)

// Cache is a CacheRepository that holds resources until closed
type Cache interface {
	domain.CacheRepository
	io.Closer
}

// New builds the cache selected by configuration
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(cfg.TTL), nil
	case "redis":
		return NewRedisCache(ctx, cfg.RedisURL, "chococrunch")
	}
	return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
}
