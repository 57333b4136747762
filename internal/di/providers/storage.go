package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/media/images"
)

// ProvideObjectStorage provides the bucket that holds book covers.
func ProvideObjectStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Data.ObjectsPath(), cfg.Storage.Bucket, cfg.Storage.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	log.Info("Object storage initialized",
		"root", storage.Root(),
		"bucket", storage.Bucket(),
	)

	return storage, nil
}
