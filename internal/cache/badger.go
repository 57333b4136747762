package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a persistent Backend. Entry lifetimes use badger's native TTL.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens a badger cache at path. An empty path opens an in-memory database.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	if logger != nil {
		logger.Info("Badger cache opened", "path", path, "in_memory", path == "")
	}

	return &Badger{db: db, logger: logger}, nil
}

// Get implements Backend.
func (b *Badger) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.wrap("get", err)
	}
	return value, true, nil
}

// Set implements Backend.
func (b *Badger) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return b.wrap("set", b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}))
}

// Delete implements Backend.
func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.wrap("delete", b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}))
}

// Close implements Backend.
func (b *Badger) Close() error {
	if b.logger != nil {
		b.logger.Info("Closing badger cache")
	}
	return b.db.Close()
}

func (b *Badger) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return fmt.Errorf("badger %s: %w", op, err)
}
