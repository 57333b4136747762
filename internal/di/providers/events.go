package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/logger"
)

// BrokerHandle wraps the event broker with its context for lifecycle management.
type BrokerHandle struct {
	*events.Broker
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *BrokerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Broker.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideBroker provides the domain event broker.
func ProvideBroker(i do.Injector) (*BrokerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	broker := events.NewBroker(cfg.Events.BufferSize, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	broker.Start(ctx)

	log.Info("Event broker started", "buffer", cfg.Events.BufferSize)

	return &BrokerHandle{
		Broker: broker,
		cancel: cancel,
	}, nil
}
