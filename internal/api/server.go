// Package api provides the HTTP API server and handlers for the library service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/ratelimit"
)

// Options tunes the HTTP surface.
type Options struct {
	Title          string
	Version        string
	AllowedOrigins []string
	// RateLimiter throttles requests per client IP. Nil disables limiting.
	RateLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	infra    Infrastructure
	stream   *events.Stream
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, infra Infrastructure, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Title == "" {
		opts.Title = "Library API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		services: services,
		infra:    infra,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	if infra.Broker != nil {
		s.stream = events.NewStream(infra.Broker, logger)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig(opts.Title, opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RateLimiter != nil {
		s.router.Use(RateLimitMiddleware(opts.RateLimiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerReaderRoutes()
	s.registerBorrowRoutes()

	// Streaming and file routes bypass huma.
	if s.stream != nil {
		s.router.Get("/api/v1/events/stream", s.stream.ServeHTTP)
	}
	if s.infra.Files != nil {
		s.router.Get("/files/*", s.handleServeFile)
	}
}
