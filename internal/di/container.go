// Package di provides dependency injection configuration for the library server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/di/providers"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/ratelimit"
	"github.com/practicalwork/library-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// A non-nil cfg replaces loading configuration from flags and environment.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	if cfg != nil {
		do.ProvideValue(injector, cfg)
	} else {
		do.Provide(injector, providers.ProvideConfig)
	}
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Persistence layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideObjectStorage)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Events
	do.Provide(injector, providers.ProvideBroker)

	// Business services
	do.Provide(injector, providers.ProvideServiceDependencies)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideReaderService)
	do.Provide(injector, providers.ProvideBorrowService)

	// Workers
	do.Provide(injector, providers.ProvideOverdueSweepJob)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapServices initializes the persistence layer and lifecycle services
// without starting any background work beyond the event broker.
func BootstrapServices(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*images.Storage](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.BrokerHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.ReaderService](injector)
	_ = do.MustInvoke[*service.BorrowService](injector)

	return nil
}

// Bootstrap initializes all services, starts the workers and the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if err := BootstrapServices(injector); err != nil {
		return err
	}

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	// Workers
	_ = do.MustInvoke[*providers.OverdueSweepJob](injector)

	// Server
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
