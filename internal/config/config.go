package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Auth       AuthConfig
	Store      StoreConfig
	Invitation InvitationConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Metrics    MetricsConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig controls token issuance and verification
type AuthConfig struct {
	SecretKey       string
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SetupToken      string
	FailClosedRoles bool
}

// StoreConfig points at the remote REST store
type StoreConfig struct {
	URL                 string
	ServiceKey          string
	Timeout             time.Duration
	PropagateCredential bool
}

type InvitationConfig struct {
	TTL time.Duration
}

// DatabaseConfig is the optional Postgres connection used for the audit trail
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type CacheConfig struct {
	Enabled bool
	Type    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	LoginPerSecond float64
	LoginBurst     int
}

// Load reads configuration from the environment, loading a .env file first when present
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			SecretKey:       getEnv("AUTH_SECRET_KEY", ""),
			Issuer:          getEnv("AUTH_ISSUER", "road-service-api"),
			AccessTTL:       getEnvDuration("AUTH_ACCESS_TTL", 24*time.Hour),
			RefreshTTL:      getEnvDuration("AUTH_REFRESH_TTL", 7*24*time.Hour),
			SetupToken:      getEnv("SETUP_TOKEN", ""),
			FailClosedRoles: getEnvBool("AUTH_FAIL_CLOSED_ROLES", true),
		},
		Store: StoreConfig{
			URL:                 strings.TrimRight(getEnv("STORE_URL", ""), "/"),
			ServiceKey:          getEnv("STORE_SERVICE_KEY", ""),
			Timeout:             getEnvDuration("STORE_TIMEOUT", 10*time.Second),
			PropagateCredential: getEnvBool("STORE_PROPAGATE_CREDENTIAL", false),
		},
		Invitation: InvitationConfig{
			TTL: getEnvDuration("INVITATION_TTL", 7*24*time.Hour),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("AUDIT_DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "roadservice"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "memory"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			LoginPerSecond: getEnvFloat("LOGIN_RATE_PER_SECOND", 1),
			LoginBurst:     getEnvInt("LOGIN_RATE_BURST", 5),
		},
	}

	return cfg, nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return errors.New("AUTH_SECRET_KEY is required")
	}
	if len(c.Auth.SecretKey) < 32 {
		return errors.New("AUTH_SECRET_KEY must be at least 32 characters")
	}
	if c.Store.URL == "" {
		return errors.New("STORE_URL is required")
	}
	if c.Store.ServiceKey == "" {
		return errors.New("STORE_SERVICE_KEY is required")
	}
	if c.Auth.AccessTTL <= 0 {
		return errors.New("AUTH_ACCESS_TTL must be positive")
	}
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
