package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "your-secret-key-change-in-production"

	minSecretLength = 32
	minJWTExpiry    = time.Minute
	maxJWTExpiry    = 30 * 24 * time.Hour

	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the API server configuration.
type Config struct {
	Environment string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	// Store selects the row store: postgres (DB_DSN required) or memory.
	Store      string
	DBDSN      string
	RLSEnabled bool
	SeedDemo   bool

	Port          string
	EnableMetrics bool
	EnableSwagger bool
	CORSOrigins   []string

	// AnonKey, when set, must accompany public auth calls as the apikey header.
	AnonKey string

	LoginRatePerMinute int
	LoginBurst         int

	SessionPurgeSchedule string
}

func Load() *Config {
	// A missing .env file is fine; real environment variables win.
	_ = godotenv.Load()

	config := &Config{
		Environment:          getEnv("ENVIRONMENT", "development"),
		JWTSecret:            getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer:            getEnv("JWT_ISS", "envanter"),
		JWTAudience:          getEnv("JWT_AUD", "envanter"),
		JWTExpiry:            24 * time.Hour, // Default to 24 hours
		Store:                getEnv("STORE", StorePostgres),
		DBDSN:                os.Getenv("DB_DSN"),
		RLSEnabled:           getBool("RLS_ENABLED"),
		SeedDemo:             getBool("SEED_DEMO"),
		Port:                 getEnv("PORT", "8080"),
		EnableMetrics:        getBool("ENABLE_METRICS"),
		EnableSwagger:        getBool("ENABLE_SWAGGER"),
		CORSOrigins:          splitList(os.Getenv("CORS_ORIGINS")),
		AnonKey:              os.Getenv("ANON_KEY"),
		LoginRatePerMinute:   getInt("LOGIN_RATE_PER_MIN", 10),
		LoginBurst:           getInt("LOGIN_BURST", 5),
		SessionPurgeSchedule: getEnv("SESSION_PURGE_SCHEDULE", "@every 1h"),
	}

	// Parse JWT expiry from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}

	return config
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Environment == "production" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS is required")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD is required")
	}
	if c.JWTExpiry < minJWTExpiry {
		return fmt.Errorf("JWT_EXPIRY must be at least %v", minJWTExpiry)
	}
	if c.JWTExpiry > maxJWTExpiry {
		return fmt.Errorf("JWT_EXPIRY must be at most %v", maxJWTExpiry)
	}

	switch c.Store {
	case StorePostgres:
		if c.DBDSN == "" {
			return errors.New("DB_DSN is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	if c.LoginRatePerMinute <= 0 || c.LoginBurst <= 0 {
		return errors.New("LOGIN_RATE_PER_MIN and LOGIN_BURST must be positive")
	}
	return nil
}

// LoadAndValidate loads the configuration and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ClientConfig configures the envanter CLI and other API clients.
type ClientConfig struct {
	APIURL            string
	AnonKey           string
	StatePath         string
	Timeout           time.Duration
	LowStockThreshold int
}

// LoadClient reads the client settings from the environment and .env.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{
		APIURL:            strings.TrimRight(getEnv("ENVANTER_API_URL", "http://localhost:8080"), "/"),
		AnonKey:           os.Getenv("ENVANTER_ANON_KEY"),
		StatePath:         os.Getenv("ENVANTER_STATE"),
		Timeout:           15 * time.Second,
		LowStockThreshold: getInt("ENVANTER_LOW_STOCK", 5),
	}
	if v := os.Getenv("ENVANTER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ENVANTER_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		cfg.StatePath = filepath.Join(home, ".envanter", "state.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the client settings.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("ENVANTER_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("ENVANTER_API_URL must be http or https, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return errors.New("ENVANTER_TIMEOUT must be positive")
	}
	if c.LowStockThreshold < 0 {
		return errors.New("ENVANTER_LOW_STOCK cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
