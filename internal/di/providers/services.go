package providers

import (
	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/service"
	"github.com/practicalwork/library-server/internal/validation"
)

// ProvideServiceDependencies assembles the collaborators shared by the lifecycle services.
func ProvideServiceDependencies(i do.Injector) (*service.Dependencies, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	storage := do.MustInvoke[*images.Storage](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	brokerHandle := do.MustInvoke[*BrokerHandle](i)

	return &service.Dependencies{
		Store:     storeHandle.Store,
		Cache:     cacheHandle.Registry,
		Storage:   storage,
		Index:     indexHandle.SearchIndex,
		Publisher: brokerHandle.Broker,
		Validator: validation.New(),
		Options: service.Options{
			LoanPeriod:   cfg.Library.LoanPeriod,
			CardValidity: cfg.Library.CardValidity,
			MaxCoverSize: cfg.Library.MaxCoverSize,
			CacheTTL:     cfg.Cache.TTL,
		},
		Logger: log.Logger,
	}, nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	deps := do.MustInvoke[*service.Dependencies](i)
	return service.NewBookService(*deps), nil
}

// ProvideReaderService provides the reader service.
func ProvideReaderService(i do.Injector) (*service.ReaderService, error) {
	deps := do.MustInvoke[*service.Dependencies](i)
	return service.NewReaderService(*deps), nil
}

// ProvideBorrowService provides the borrow service.
func ProvideBorrowService(i do.Injector) (*service.BorrowService, error) {
	deps := do.MustInvoke[*service.Dependencies](i)
	return service.NewBorrowService(*deps), nil
}
