package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Client cache type constants
const (
	ClientCacheTypeMemory = "memory"
	ClientCacheTypeRedis  = "redis"
)

// Refresh token rotation modes
const (
	RotationReissue = "reissue" // revoke the old refresh token and return a new one
	RotationKeep    = "keep"    // keep the refresh token, rotate only the access token
)

const defaultSessionSecret = "session-secret-change-in-production"

type Config struct {
	// Server settings
	ServerAddr  string
	BaseURL     string
	Environment string
	LogLevel    string

	// Session settings
	SessionSecret string
	SessionMaxAge int // seconds

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)
	DBInitTimeout  time.Duration

	// Seeded admin account
	DefaultAdminPassword string

	// Authorization server
	AuthCodeExpiration     time.Duration
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	RefreshTokenRotation   string // "reissue" or "keep"
	PKCERequiredForPublic  bool
	SupportedScopes        []string

	// Third-party connections
	EncryptionKey         string // 64 hex chars (AES-256)
	AppsConfigPath        string
	OAuthTimeout          time.Duration // HTTP client timeout for external token endpoints
	ConnectionRefreshSkew time.Duration

	// Redis (lock, rate limiting, client cache)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Rate limiting
	EnableRateLimit   bool
	RateLimitStore    string // "memory" or "redis"
	TokenRateLimit    int    // requests per minute per IP
	RegisterRateLimit int    // requests per minute per IP

	// Client lookup cache
	ClientCacheType string // "memory" or "redis"
	ClientCacheTTL  time.Duration

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // Bearer token guarding /metrics; empty disables the check
	GaugeInterval  time.Duration

	// Housekeeping
	CleanupInterval   time.Duration
	AuditLogRetention time.Duration // 0 keeps audit logs forever

	// Audit
	EnableAuditLogging bool
	AuditLogBufferSize int
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "mcpgate.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400*7),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),

		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour), // 30 days
		RefreshTokenRotation:   getEnv("REFRESH_TOKEN_ROTATION", RotationReissue),
		PKCERequiredForPublic:  getEnvBool("PKCE_REQUIRED_FOR_PUBLIC", true),
		SupportedScopes: getEnvSlice(
			"SUPPORTED_SCOPES",
			[]string{"mcp", "connections:read", "connections:write"},
		),

		EncryptionKey:         getEnv("ENCRYPTION_KEY", ""),
		AppsConfigPath:        getEnv("APPS_CONFIG_PATH", "apps.yaml"),
		OAuthTimeout:          getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		ConnectionRefreshSkew: getEnvDuration("CONNECTION_REFRESH_SKEW", 0),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		EnableRateLimit:   getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:    getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		TokenRateLimit:    getEnvInt("TOKEN_RATE_LIMIT", 60),
		RegisterRateLimit: getEnvInt("REGISTER_RATE_LIMIT", 10),

		ClientCacheType: getEnv("CLIENT_CACHE_TYPE", ClientCacheTypeMemory),
		ClientCacheTTL:  getEnvDuration("CLIENT_CACHE_TTL", 5*time.Minute),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),
		GaugeInterval:  getEnvDuration("METRICS_GAUGE_INTERVAL", 5*time.Minute),

		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		AuditLogRetention: getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
	}
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RotateRefreshTokens reports whether a refresh_token grant reissues the refresh token.
func (c *Config) RotateRefreshTokens() bool {
	return c.RefreshTokenRotation == RotationReissue
}

// Validate checks the configuration for values that would make the server unsafe
// or unable to start.
func (c *Config) Validate() error {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		return errors.New("ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}

	if c.IsProduction() && c.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be changed in production")
	}

	switch c.RefreshTokenRotation {
	case RotationReissue, RotationKeep:
	default:
		return fmt.Errorf("invalid REFRESH_TOKEN_ROTATION value: %q (must be %q or %q)",
			c.RefreshTokenRotation, RotationReissue, RotationKeep)
	}

	switch c.RateLimitStore {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if c.EnableRateLimit && c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when RATE_LIMIT_STORE=redis")
		}
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis)
	}

	switch c.ClientCacheType {
	case ClientCacheTypeMemory:
	case ClientCacheTypeRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when CLIENT_CACHE_TYPE=redis")
		}
	default:
		return fmt.Errorf("invalid CLIENT_CACHE_TYPE value: %q (must be %q or %q)",
			c.ClientCacheType, ClientCacheTypeMemory, ClientCacheTypeRedis)
	}

	if c.ConnectionRefreshSkew < 0 {
		return errors.New("CONNECTION_REFRESH_SKEW must not be negative")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
