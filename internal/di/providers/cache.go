package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/logger"
)

// CacheHandle wraps the cache registry with shutdown capability.
type CacheHandle struct {
	*cache.Registry
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the tag-aware cache registry over the configured backend.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case config.CacheBackendBadger:
		b, err := cache.OpenBadger(cfg.Data.CachePath(), log.Logger)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		backend = b
	default:
		backend = cache.NewSturdyc(cache.SturdycConfig{
			Capacity: cfg.Cache.Capacity,
			TTL:      cfg.Cache.TTL,
		})
	}

	log.Info("Cache initialized",
		"backend", cfg.Cache.Backend,
		"ttl", cfg.Cache.TTL,
	)

	return &CacheHandle{Registry: cache.NewRegistry(backend, cfg.Cache.TTL, log.Logger)}, nil
}
