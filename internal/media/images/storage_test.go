package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(t.TempDir(), "library", "http://localhost:8080/files/")
	require.NoError(t, err)
	return storage
}

func TestNewStorage(t *testing.T) {
	t.Run("creates bucket directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		storage, err := NewStorage(tmpDir, "library", "")
		require.NoError(t, err)
		require.NotNil(t, storage)

		info, err := os.Stat(filepath.Join(tmpDir, "library"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("returns error for empty path", func(t *testing.T) {
		storage, err := NewStorage("", "library", "")
		assert.Error(t, err)
		assert.Nil(t, storage)
		assert.Contains(t, err.Error(), "base path cannot be empty")
	})

	t.Run("rejects bucket names with separators", func(t *testing.T) {
		for _, bucket := range []string{"", "a/b", "..", `a\b`} {
			_, err := NewStorage(t.TempDir(), bucket, "")
			assert.Error(t, err, bucket)
		}
	})
}

func TestStorage_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("writes object and returns bucket reference", func(t *testing.T) {
		storage := setupTestStorage(t)

		ref, err := storage.Upload(ctx, strings.NewReader("cover bytes"), "covers/book-1/front.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, "library/covers/book-1/front.png", ref)

		data, err := os.ReadFile(filepath.Join(storage.Root(), "library", "covers", "book-1", "front.png"))
		require.NoError(t, err)
		assert.Equal(t, "cover bytes", string(data))
	})

	t.Run("overwrites existing object", func(t *testing.T) {
		storage := setupTestStorage(t)

		_, err := storage.Upload(ctx, strings.NewReader("old"), "a.png", "image/png")
		require.NoError(t, err)
		_, err = storage.Upload(ctx, strings.NewReader("new"), "a.png", "image/png")
		require.NoError(t, err)

		rc, err := storage.Open("a.png")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("cannot escape the bucket", func(t *testing.T) {
		storage := setupTestStorage(t)

		ref, err := storage.Upload(ctx, strings.NewReader("x"), "../../etc/passwd", "image/png")
		require.NoError(t, err)
		assert.Equal(t, "library/etc/passwd", ref)
		assert.FileExists(t, filepath.Join(storage.Root(), "library", "etc", "passwd"))
	})

	t.Run("rejects empty names", func(t *testing.T) {
		storage := setupTestStorage(t)

		_, err := storage.Upload(ctx, strings.NewReader("x"), "/", "image/png")
		assert.ErrorIs(t, err, ErrInvalidObjectName)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		storage := setupTestStorage(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := storage.Upload(cctx, strings.NewReader("x"), "a.png", "image/png")
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, storage.Exists("a.png"))
	})
}

func TestStorage_Delete(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	_, err := storage.Upload(ctx, strings.NewReader("x"), "covers/b/c.png", "image/png")
	require.NoError(t, err)
	assert.True(t, storage.Exists("covers/b/c.png"))

	require.NoError(t, storage.Delete(ctx, "covers/b/c.png"))
	assert.False(t, storage.Exists("covers/b/c.png"))

	// Already deleted, not an error.
	assert.NoError(t, storage.Delete(ctx, "covers/b/c.png"))
}

func TestStorage_URL(t *testing.T) {
	storage := setupTestStorage(t)

	u, err := storage.URL("covers/book-1/my cover.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/library/covers/book-1/my%20cover.png", u)

	_, err = storage.URL("")
	assert.ErrorIs(t, err, ErrInvalidObjectName)
}

func TestStorage_ObjectName(t *testing.T) {
	storage := setupTestStorage(t)

	name, ok := storage.ObjectName("library/covers/book-1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "covers/book-1/a.png", name)

	_, ok = storage.ObjectName("other/covers/a.png")
	assert.False(t, ok)
}

func TestStorage_Hash(t *testing.T) {
	ctx := context.Background()
	storage := setupTestStorage(t)

	_, err := storage.Upload(ctx, strings.NewReader("same"), "a", "image/png")
	require.NoError(t, err)
	_, err = storage.Upload(ctx, strings.NewReader("same"), "b", "image/png")
	require.NoError(t, err)

	ha, err := storage.Hash("a")
	require.NoError(t, err)
	hb, err := storage.Hash("b")
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	_, err = storage.Hash("missing")
	assert.Error(t, err)
}

func TestCoverObjectName(t *testing.T) {
	assert.Equal(t, "covers/book-1/front.png", CoverObjectName("book-1", "front.png"))
	assert.Equal(t, "covers/book-1/passwd", CoverObjectName("book-1", "../../passwd"))
	assert.Equal(t, "covers/book-1/my_cover.jpg", CoverObjectName("book-1", "my cover.jpg"))
}

func TestCleanObjectName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b.png", "a/b.png"},
		{"/a//b.png", "a/b.png"},
		{"a/../../b.png", "b.png"},
		{`a\b.png`, "a/b.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanObjectName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeBlurHashFromBytes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := range 100 {
		for x := range 200 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	hash, err := ComputeBlurHashFromBytes(buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	again, err := ComputeBlurHashFromBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	_, err = ComputeBlurHashFromBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Equal(t, small, thumbnail(small))

	tests := []struct {
		name string
		w, h int
		dx   int
		dy   int
	}{
		{"wide", 640, 320, 64, 32},
		{"tall", 300, 900, 21, 64},
		{"sliver", 5000, 20, 64, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := thumbnail(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))).Bounds()
			assert.Equal(t, tt.dx, b.Dx())
			assert.Equal(t, tt.dy, b.Dy())
		})
	}
}
