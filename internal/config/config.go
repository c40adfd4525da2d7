package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendFirebase = "firebase"
	BackendSQLite   = "sqlite"
)

const devJWTSecret = "portal-default-dev-secret-change-me"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Record store
	StoreBackend        string
	FirebaseDatabaseURL string
	FirebaseAuthToken   string
	SQLitePath          string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	SnapshotTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Change feed
	NATSURL string

	// JWT / Auth
	JWTSecret          string
	JWTTTL             time.Duration
	AdminPasswordHash  string
	LoginRatePerMinute int
	LoginBurst         int

	// Portal behaviour
	ClientDeletePolicy string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", BackendFirebase)),
		FirebaseDatabaseURL: getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseAuthToken:   getEnv("FIREBASE_AUTH_TOKEN", ""),
		SQLitePath:          getEnv("SQLITE_PATH", "data/portal.db"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 20),

		SnapshotTTL: getEnvDuration("SNAPSHOT_TTL", 30*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		NATSURL: getEnv("NATS_URL", ""),

		JWTSecret:          getEnv("JWT_SECRET", devJWTSecret),
		JWTTTL:             getEnvDuration("JWT_TTL", 12*time.Hour),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         getEnvInt("LOGIN_BURST", 5),

		ClientDeletePolicy: getEnv("CLIENT_DELETE_POLICY", "block"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required when STORE_BACKEND=%s", BackendFirebase)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_BACKEND=%s", BackendSQLite)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, BackendFirebase, BackendSQLite)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	return nil
}

// UsingDevSecret reports whether JWT_SECRET was left at its default.
func (c *Config) UsingDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
