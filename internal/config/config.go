// Package config loads the library service configuration from command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Library LibraryConfig
	Cache   CacheConfig
	Storage StorageConfig
	Events  EventsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the on-disk layout root.
type DataConfig struct {
	// BasePath holds the database, cover objects, search index and badger cache.
	BasePath string
}

// DatabasePath returns the sqlite database location.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.BasePath, "library.db")
}

// ObjectsPath returns the root directory of stored objects.
func (d DataConfig) ObjectsPath() string {
	return filepath.Join(d.BasePath, "objects")
}

// SearchIndexPath returns the bleve index directory.
func (d DataConfig) SearchIndexPath() string {
	return filepath.Join(d.BasePath, "search.bleve")
}

// CachePath returns the badger cache directory.
func (d DataConfig) CachePath() string {
	return filepath.Join(d.BasePath, "cache")
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins, default: *
	RateLimitRPS   float64       // per client, default: 20
	RateLimitBurst int           // default: 40
}

// LibraryConfig holds lending rules.
type LibraryConfig struct {
	LoanPeriod           time.Duration // default: 720h
	CardValidity         time.Duration // default: 8760h
	MaxCoverSize         int64         // bytes, default: 5000000
	OverdueSweepInterval time.Duration // default: 1h
}

// CacheConfig holds read-through cache configuration.
type CacheConfig struct {
	Backend  string // memory or badger
	TTL      time.Duration
	Capacity int
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Bucket    string
	PublicURL string
}

// EventsConfig holds event broker configuration.
type EventsConfig struct {
	BufferSize int
}

// LoadConfig loads configuration using the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration from args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("library-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for database, objects and indexes")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	rateLimitRPS := fs.String("rate-limit-rps", "", "Requests per second per client (default: 20)")
	rateLimitBurst := fs.String("rate-limit-burst", "", "Request burst per client (default: 40)")

	loanPeriod := fs.String("loan-period", "", "Borrow loan period (default: 720h)")
	cardValidity := fs.String("card-validity", "", "Reader card validity (default: 8760h)")
	maxCoverSize := fs.String("max-cover-size", "", "Maximum cover upload in bytes (default: 5000000)")
	sweepInterval := fs.String("overdue-sweep-interval", "", "Overdue sweep interval (default: 1h)")

	cacheBackend := fs.String("cache-backend", "", "Cache backend: memory or badger (default: memory)")
	cacheTTL := fs.String("cache-ttl", "", "Cache entry lifetime (default: 10m)")
	cacheCapacity := fs.String("cache-capacity", "", "In-memory cache capacity (default: 10000)")

	bucket := fs.String("bucket", "", "Object storage bucket (default: library)")
	publicURL := fs.String("public-url", "", "Public base URL for stored objects")

	eventBuffer := fs.String("event-buffer", "", "Event broker buffer size (default: 1000)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
			RateLimitBurst: getIntConfigValue(*rateLimitBurst, "RATE_LIMIT_BURST", 40),
		},
		Library: LibraryConfig{
			MaxCoverSize: int64(getIntConfigValue(*maxCoverSize, "MAX_COVER_SIZE", 5_000_000)),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getConfigValue(*cacheBackend, "CACHE_BACKEND", CacheBackendMemory)),
			Capacity: getIntConfigValue(*cacheCapacity, "CACHE_CAPACITY", 10000),
		},
		Storage: StorageConfig{
			Bucket:    getConfigValue(*bucket, "STORAGE_BUCKET", "library"),
			PublicURL: strings.TrimRight(getConfigValue(*publicURL, "STORAGE_PUBLIC_URL", "http://localhost:8080/files"), "/"),
		},
		Events: EventsConfig{
			BufferSize: getIntConfigValue(*eventBuffer, "EVENT_BUFFER_SIZE", 1000),
		},
	}

	rps := getConfigValue(*rateLimitRPS, "RATE_LIMIT_RPS", "20")
	parsedRPS, err := strconv.ParseFloat(rps, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rps, err)
	}
	cfg.Server.RateLimitRPS = parsedRPS

	durations := []struct {
		name       string
		flagValue  string
		envKey     string
		defaultVal string
		dst        *time.Duration
	}{
		{"read timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"write timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"idle timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"loan period", *loanPeriod, "LOAN_PERIOD", "720h", &cfg.Library.LoanPeriod},
		{"card validity", *cardValidity, "CARD_VALIDITY", "8760h", &cfg.Library.CardValidity},
		{"overdue sweep interval", *sweepInterval, "OVERDUE_SWEEP_INTERVAL", "1h", &cfg.Library.OverdueSweepInterval},
		{"cache ttl", *cacheTTL, "CACHE_TTL", "10m", &cfg.Cache.TTL},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.defaultVal)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Cache.Backend != CacheBackendMemory && c.Cache.Backend != CacheBackendBadger {
		return fmt.Errorf("invalid cache backend: %s (must be memory or badger)", c.Cache.Backend)
	}

	positive := map[string]time.Duration{
		"loan period":            c.Library.LoanPeriod,
		"card validity":          c.Library.CardValidity,
		"overdue sweep interval": c.Library.OverdueSweepInterval,
		"cache ttl":              c.Cache.TTL,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Library.MaxCoverSize <= 0 {
		return fmt.Errorf("max cover size must be positive, got %d", c.Library.MaxCoverSize)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", c.Events.BufferSize)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage bucket is required")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data directory to ~/PracticalWorkLibrary.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "PracticalWorkLibrary")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
