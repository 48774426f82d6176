package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable the server needs. It is populated once in main
// and passed to each component at construction time; nothing reads the
// environment after startup.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8000"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"casevault"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// JWT
	JWTSecret       string `envconfig:"JWT_SECRET"`
	TokenExpiryMins int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30"`

	// Supabase Storage
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseBucket     string `envconfig:"SUPABASE_BUCKET" default:"case-documents"`

	// External court-records API
	CourtAPIBaseURL string `envconfig:"COURT_API_BASE_URL" default:"https://apis.akshit.net/eciapi/17"`
	CourtAPIKey     string `envconfig:"COURT_API_KEY"`

	// Observability
	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load populates a Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// TokenExpiry returns the configured access-token lifetime.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryMins) * time.Minute
}
