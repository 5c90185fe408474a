package main

import (
	"context"
	"errors"

	"sjsage522/asinharvester/config"
	"sjsage522/asinharvester/internal/browser"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"
	"sjsage522/asinharvester/services/cache"
	"sjsage522/asinharvester/services/publisher"
	"sjsage522/asinharvester/services/storage"
)

// Services holds all the initialized services
type Services struct {
	Navigator browser.Navigator
	Cache     cache.CacheService
	Blocker   *cache.Blocker
	Store     storage.Store
	Publisher publisher.Publisher
	Timing    *harvest.Timing
}

// need selects which services a command initializes
type need struct {
	navigator bool
	store     bool
	publisher bool
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	var errs []error
	if s.Navigator != nil {
		errs = append(errs, s.Navigator.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Default.Warn().Err(err).Msg("Cleanup finished with errors")
	}
}

// initializeServices initializes the services a command needs
func initializeServices(ctx context.Context, cfg *config.Config, n need) (*Services, error) {
	services := &Services{Timing: timingFrom(cfg)}

	// Initialize cache service
	services.Cache = cache.New(cfg.MemcacheAddr)
	services.Blocker = cache.NewBlocker(services.Cache, cfg.BlockTime)
	if cfg.MemcacheAddr != "" {
		logger.Info("Using Memcache at %s for block marks", cfg.MemcacheAddr)
	}

	if n.store {
		store, err := storage.New(ctx, cfg)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Store = store
		logger.Info("Using %s storage backend", cfg.StorageBackend)
	}

	if n.navigator {
		nav, err := browser.NewNavigator(cfg)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Navigator = nav
	}

	if n.publisher {
		if cfg.RedisStream == "" {
			services.Publisher = publisher.Nop{}
		} else {
			services.Publisher = publisher.NewRedisPublisher(
				ctx,
				cfg.RedisAddr,
				cfg.RedisDB,
				cfg.RedisStream,
				cfg.RedisStreamCount,
				cfg.RedisStreamMaxLength,
			)
			logger.Info("Publishing events to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services, nil
}

// timingFrom overrides the default loader timing with the configured delays
func timingFrom(cfg *config.Config) *harvest.Timing {
	timing := harvest.DefaultTiming()
	timing.ScrollDelay = cfg.ScrollDelay
	timing.MaxScrolls = cfg.MaxScrolls
	timing.StableScrolls = cfg.StableScrolls
	timing.ClickSettleDelay = cfg.ClickSettleDelay
	timing.NavigationDelay = cfg.NavigationDelay
	timing.QuickScrollDelay = cfg.QuickScrollDelay
	return &timing
}
