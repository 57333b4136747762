package search

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex is a bleve index of catalogue books. It is safe for
// concurrent use; Rebuild takes the write lock.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	Path   string       // Index directory; empty keeps the index in memory
	Logger *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is bumped whenever buildIndexMapping changes. An on-disk
// index written with another version is discarded on open.
const mappingVersion = "1"

// NewSearchIndex opens the index at opts.Path, creating it when missing.
// An index with a missing or stale version file, or one bleve cannot open,
// is removed and recreated empty; callers reindex from the catalogue.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &SearchIndex{path: opts.Path, logger: logger}
	if s.path == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		s.index = index
		return s, nil
	}

	if s.currentVersionOnDisk() {
		index, err := bleve.Open(s.path)
		if err == nil {
			logger.Info("opened search index", "path", s.path)
			s.index = index
			return s, nil
		}
		logger.Warn("failed to open search index, recreating", "path", s.path, "error", err)
	}

	index, err := s.createOnDisk()
	if err != nil {
		return nil, err
	}
	s.index = index
	return s, nil
}

func (s *SearchIndex) versionPath() string {
	return s.path + ".version"
}

// currentVersionOnDisk reports whether an index exists at s.path and was
// written with mappingVersion.
func (s *SearchIndex) currentVersionOnDisk() bool {
	if _, err := os.Stat(s.path); err != nil {
		return false
	}
	version, err := os.ReadFile(s.versionPath())
	if err != nil || string(version) != mappingVersion {
		s.logger.Info("search index mapping is outdated",
			"found_version", string(version),
			"mapping_version", mappingVersion,
		)
		return false
	}
	return true
}

// createOnDisk replaces whatever is at s.path with an empty index.
func (s *SearchIndex) createOnDisk() (bleve.Index, error) {
	if err := os.RemoveAll(s.path); err != nil {
		return nil, fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := os.WriteFile(s.versionPath(), []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("failed to write search index version", "error", err)
	}
	s.logger.Info("created search index", "path", s.path, "mapping_version", mappingVersion)
	return index, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces a book document.
func (s *SearchIndex) IndexBook(doc *BookDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexBooks indexes documents in batches of 500.
func (s *SearchIndex) IndexBooks(docs []*BookDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteBook removes a book from the index.
func (s *SearchIndex) DeleteBook(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document by recreating the index. It blocks all
// other operations until done.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	} else if index, err = s.createOnDisk(); err != nil {
		return err
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
