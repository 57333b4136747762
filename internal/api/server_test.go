package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/ratelimit"
	"github.com/practicalwork/library-server/internal/search"
	"github.com/practicalwork/library-server/internal/service"
	"github.com/practicalwork/library-server/internal/store/sqlite"
)

// testEnvelope mirrors Envelope with typed data for decoding.
type testEnvelope[T any] struct {
	Version int            `json:"v"`
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var envelope testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), "body: %s", resp.Body.String())
	return envelope
}

// apiTestServer wraps the API server for testing.
type apiTestServer struct {
	*Server
	api     humatest.TestAPI
	storage *images.Storage
	broker  *events.Broker
}

// setupTestServer creates a test server backed by a temp sqlite store,
// an in-memory search index and file storage under t.TempDir().
func setupTestServer(t *testing.T, opts ...func(*Options)) *apiTestServer {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(dir, "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := cache.NewRegistry(cache.NewSturdyc(cache.SturdycConfig{Capacity: 1000, TTL: time.Minute}), time.Minute, logger)
	t.Cleanup(func() { _ = registry.Close() })

	storage, err := images.NewStorage(filepath.Join(dir, "objects"), "library", "http://localhost:8080/files")
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	broker := events.NewBroker(16, logger)

	deps := service.Dependencies{
		Store:     st,
		Cache:     registry,
		Storage:   storage,
		Index:     index,
		Publisher: broker,
		Logger:    logger,
	}
	services := &Services{
		Book:   service.NewBookService(deps),
		Reader: service.NewReaderService(deps),
		Borrow: service.NewBorrowService(deps),
	}

	options := Options{Title: "Library API Test"}
	for _, o := range opts {
		o(&options)
	}

	s := NewServer(services, Infrastructure{
		Database: st,
		Search:   index,
		Broker:   broker,
		Files:    storage,
	}, options, logger)

	return &apiTestServer{
		Server:  s,
		api:     humatest.Wrap(t, s.API()),
		storage: storage,
		broker:  broker,
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	envelope := decode[HealthResponse](t, resp)
	assert.True(t, envelope.Success)
	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.Equal(t, "healthy", envelope.Data.Status)
	assert.Equal(t, "healthy", envelope.Data.Components["database"].Status)
	assert.Equal(t, "healthy", envelope.Data.Components["search"].Status)
	assert.Equal(t, "no subscribers", envelope.Data.Components["events"].Message)
}

func TestHealthCheck_DegradedWithoutComponents(t *testing.T) {
	s := NewServer(&Services{}, Infrastructure{}, Options{}, nil)
	api := humatest.Wrap(t, s.API())

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	envelope := decode[HealthResponse](t, resp)
	assert.Equal(t, "degraded", envelope.Data.Status)
	assert.Equal(t, "database not configured", envelope.Data.Components["database"].Message)
}

func TestEnvelopeTransformer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "book-1"})
		require.NoError(t, err)

		envelope, ok := result.(Envelope)
		require.True(t, ok)
		assert.True(t, envelope.Success)
		assert.Equal(t, 1, envelope.Version)
		assert.Equal(t, map[string]string{"id": "book-1"}, envelope.Data)
	})

	t.Run("api error", func(t *testing.T) {
		result, err := EnvelopeTransformer(nil, "409", &APIError{
			Code:    "CONFLICT",
			Message: "reader has unreturned books",
			Details: map[string]any{"book_ids": []string{"book-1"}},
		})
		require.NoError(t, err)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"v": 1,
			"success": false,
			"error": "reader has unreturned books",
			"code": "CONFLICT",
			"details": {"book_ids": ["book-1"]}
		}`, string(data))
	})

	t.Run("already wrapped", func(t *testing.T) {
		in := Envelope{Version: 1, Success: true}
		result, err := EnvelopeTransformer(nil, "200", in)
		require.NoError(t, err)
		assert.Equal(t, in, result)
	})
}

func TestErrorMapping(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		resp   *httptest.ResponseRecorder
		status int
		code   string
	}{
		{"not found", ts.api.Get("/api/v1/books/book-missing"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid input", ts.api.Post("/api/v1/books", map[string]any{"title": "", "authors": []string{"A"}}), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown reader", ts.api.Get("/api/v1/readers/reader-missing"), http.StatusNotFound, "NOT_FOUND"},
		{"lookup without query", ts.api.Get("/api/v1/readers/lookup"), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.status, tt.resp.Code, tt.resp.Body.String())
			envelope := decode[any](t, tt.resp)
			assert.False(t, envelope.Success)
			assert.Equal(t, tt.code, envelope.Code)
			assert.NotEmpty(t, envelope.Error)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.New(0.001, 2)
	t.Cleanup(limiter.Stop)

	ts := setupTestServer(t, func(o *Options) {
		o.RateLimiter = limiter
	})

	for range 2 {
		resp := ts.api.Get("/health")
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	envelope := decode[any](t, resp)
	assert.False(t, envelope.Success)
	assert.Equal(t, "RATE_LIMITED", envelope.Code)

	// Another client has its own budget.
	resp = ts.api.Get("/health", "X-Forwarded-For: 203.0.113.9")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.4:5678", "192.0.2.4"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.4", "192.0.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, func(o *Options) {
		o.AllowedOrigins = []string{"https://desk.example.org"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
	req.Header.Set("Origin", "https://desk.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	assert.Equal(t, "https://desk.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
