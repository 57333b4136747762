package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/api"
	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/ratelimit"
	"github.com/practicalwork/library-server/internal/service"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if h.limiter != nil {
		h.limiter.Stop()
	}
	return h.Server.Shutdown(ctx)
}

// ProvideAPIServer provides the HTTP handler with every route mounted.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	brokerHandle := do.MustInvoke[*BrokerHandle](i)
	storage := do.MustInvoke[*images.Storage](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	services := &api.Services{
		Book:   do.MustInvoke[*service.BookService](i),
		Reader: do.MustInvoke[*service.ReaderService](i),
		Borrow: do.MustInvoke[*service.BorrowService](i),
	}

	infra := api.Infrastructure{
		Database: storeHandle.Store,
		Search:   indexHandle.SearchIndex,
		Broker:   brokerHandle.Broker,
		Files:    storage,
	}

	return api.NewServer(services, infra, api.Options{
		Version:        Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
	}, log.Logger), nil
}

// ProvideRateLimiter provides the per-client request limiter.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst), nil
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*api.Server](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
