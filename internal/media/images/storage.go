// Package images stores cover images and computes their placeholders.
package images

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/practicalwork/library-server/internal/normalize"
)

// ErrInvalidObjectName is returned for object names that are empty or
// resolve outside the bucket.
var ErrInvalidObjectName = errors.New("invalid object name")

// Storage is a filesystem object store. Objects live under
// {basePath}/{bucket}/{objectName} and are referenced as "{bucket}/{objectName}".
// Thread-safe for concurrent operations.
type Storage struct {
	root      string
	bucket    string
	publicURL string
	mu        sync.RWMutex // Protects file operations
}

// NewStorage creates the bucket directory under basePath.
// publicURL is the externally visible prefix objects are served from
// (e.g. http://localhost:8080/files).
func NewStorage(basePath, bucket, publicURL string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return nil, fmt.Errorf("invalid bucket name %q", bucket)
	}

	if err := os.MkdirAll(filepath.Join(basePath, bucket), 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	return &Storage{
		root:      basePath,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Bucket returns the bucket name.
func (s *Storage) Bucket() string {
	return s.bucket
}

// Root returns the directory that holds every bucket. Serving it at the
// public URL prefix makes URL results resolvable.
func (s *Storage) Root() string {
	return s.root
}

// Upload writes r to objectName, replacing any existing object, and returns
// the stored reference "{bucket}/{objectName}".
func (s *Storage) Upload(ctx context.Context, r io.Reader, objectName, contentType string) (string, error) {
	name, err := CleanObjectName(objectName)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.objectPath(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write object %s (%s): %w", name, contentType, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close object file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", fmt.Errorf("failed to set object permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return s.bucket + "/" + name, nil
}

// Open returns a reader for the object. The caller closes it.
func (s *Storage) Open(objectName string) (io.ReadCloser, error) {
	name, err := CleanObjectName(objectName)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.objectPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found %s: %w", name, err)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Exists reports whether the object exists.
func (s *Storage) Exists(objectName string) bool {
	name, err := CleanObjectName(objectName)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.objectPath(name))
	return err == nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	name, err := CleanObjectName(objectName)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.objectPath(name)); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error.
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// URL returns the public URL of the object.
func (s *Storage) URL(objectName string) (string, error) {
	name, err := CleanObjectName(objectName)
	if err != nil {
		return "", err
	}

	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + url.PathEscape(s.bucket) + "/" + strings.Join(segments, "/"), nil
}

// Hash computes the SHA256 of an object.
// Returns hex-encoded string for ETag/cache validation.
func (s *Storage) Hash(objectName string) (string, error) {
	rc, err := s.Open(objectName)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("failed to hash object: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ObjectName strips the bucket prefix from a reference returned by Upload.
// The second result is false when ref belongs to another bucket.
func (s *Storage) ObjectName(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, s.bucket+"/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func (s *Storage) objectPath(name string) string {
	return filepath.Join(s.root, s.bucket, filepath.FromSlash(name))
}

// CleanObjectName normalizes a slash separated object name. Leading slashes
// and dot segments are resolved so the result stays inside the bucket.
func CleanObjectName(objectName string) (string, error) {
	name := strings.ReplaceAll(objectName, `\`, "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectName, objectName)
	}
	return name, nil
}

// CoverObjectName returns the object name of a book cover: covers/{bookID}/{fileName}.
func CoverObjectName(bookID, fileName string) string {
	return path.Join("covers", normalize.FileName(bookID), normalize.FileName(fileName))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
