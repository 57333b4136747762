package api

import (
	"context"

	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/service"
)

// Services groups the lifecycle services used by the API server.
type Services struct {
	Book   *service.BookService
	Reader *service.ReaderService
	Borrow *service.BorrowService
}

// Database is the part of the store the health check needs.
type Database interface {
	Ping(ctx context.Context) error
}

// SearchIndex is the part of the search index the health check needs.
type SearchIndex interface {
	DocumentCount() (uint64, error)
}

// Infrastructure groups the components served or probed directly by the API.
// Nil fields are reported as degraded and their routes are not mounted.
type Infrastructure struct {
	Database Database
	Search   SearchIndex
	Broker   *events.Broker
	Files    *images.Storage
}
