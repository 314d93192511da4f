// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Telegram
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	// WebhookSecret is the last path segment of the webhook URL.
	WebhookSecret string `env:"WEBHOOK_SECRET" envDefault:""`
	// WebhookBaseURL, when set, is registered with Telegram on startup
	// (e.g. https://guards.example.com).
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL" envDefault:""`
	// AllowedUserIDs restricts the bot to these Telegram identifiers.
	// Empty means everyone may reach the registration flow.
	AllowedUserIDs []int64 `env:"ALLOWED_USER_IDS" envSeparator:","`
	// MaxUsers is the hard registration cap.
	MaxUsers int `env:"MAX_USERS" envDefault:"4"`
	// MaxVoiceBytes bounds voice downloads.
	MaxVoiceBytes int64 `env:"MAX_VOICE_BYTES" envDefault:"20971520"`

	// Extraction model (Gemini)
	GeminiAPIKey  string        `env:"GEMINI_API_KEY,required"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"45s"`

	// Journal
	Timezone          string        `env:"TIMEZONE" envDefault:"Europe/Moscow"`
	ListLimit         int           `env:"LIST_LIMIT" envDefault:"10"`
	DashboardLimit    int           `env:"DASHBOARD_LIMIT" envDefault:"50"`
	DashboardMaxLimit int           `env:"DASHBOARD_MAX_LIMIT" envDefault:"200"`
	DashboardCacheTTL time.Duration `env:"DASHBOARD_CACHE_TTL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// LogFile, when set, receives a copy of the log stream with rotation.
	LogFile       string `env:"LOG_FILE" envDefault:""`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (per Telegram identifier, fixed window)
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60m"`
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"10"`

	// Rate limiting for the public read API (per IP, token bucket)
	RateLimitDashboardEnabled bool `env:"RATE_LIMIT_DASHBOARD_ENABLED" envDefault:"true"`
	RateLimitDashboardRPS     int  `env:"RATE_LIMIT_DASHBOARD_RPS" envDefault:"5"`
	RateLimitDashboardBurst   int  `env:"RATE_LIMIT_DASHBOARD_BURST" envDefault:"10"`

	// CORS configuration for the read API.
	// Comma-separated list of allowed origins; "*" opens the API to any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Location resolves the journal timezone. "Today" for a guard is computed
// in this location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WebhookURL returns the full URL Telegram should deliver updates to,
// or an empty string when no base URL is configured.
func (c *Config) WebhookURL() string {
	if c.WebhookBaseURL == "" {
		return ""
	}
	base := strings.TrimSuffix(c.WebhookBaseURL, "/")
	if c.WebhookSecret == "" {
		return base + "/webhook"
	}
	return base + "/webhook/" + c.WebhookSecret
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxUsers < 1 {
		return nil, fmt.Errorf("MAX_USERS must be positive, got %d", cfg.MaxUsers)
	}
	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMaxRequests < 1 {
		return nil, fmt.Errorf("rate limit window and ceiling must be positive")
	}
	return cfg, nil
}
