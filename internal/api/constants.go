package api

// API limits and constants.
const (
	// MaxUploadSize is the largest request body accepted for cover uploads (10 MB).
	// The service applies its own, smaller cover limit.
	MaxUploadSize = 10 << 20
)

// Cache-Control header values.
const (
	CacheOneDay  = "public, max-age=86400"
	CacheNoStore = "no-cache"
)
