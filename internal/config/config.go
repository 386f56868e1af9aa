package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Database
	DatabaseURL string

	// Security
	SessionSecret         string
	SettingsEncryptionKey string
	SecureCookies         bool
	SeedAdminEmail        string
	SeedAdminPassword     string

	// Site
	SiteName          string
	AdminEmail        string
	RecoveryModeEmail string
	LogDir            string

	// SMTP
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFromEmail string
	SMTPFromName  string

	// Scheduling
	Scheduler    string // auto, action, cron
	RunAt        string // HH:MM server-local
	PollInterval time.Duration
	Timezone     string
}

// Load reads configuration from the environment. Files listed in envFiles are
// loaded first; a missing .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		DatabaseURL:           getEnv("DATABASE_URL", "logmailer.db"),
		SessionSecret:         getEnv("SESSION_SECRET", ""),
		SettingsEncryptionKey: getEnv("SETTINGS_ENCRYPTION_KEY", ""),
		SecureCookies:         getEnv("SECURE_COOKIES", "false") == "true",
		SeedAdminEmail:        getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:     getEnv("SEED_ADMIN_PASSWORD", ""),

		SiteName:          getEnv("SITE_NAME", "My Store"),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		RecoveryModeEmail: getEnv("RECOVERY_MODE_EMAIL", ""),
		LogDir:            getEnv("LOG_DIR", "wp-content/uploads/wc-logs"),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPass:      getEnv("SMTP_PASS", ""),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", ""),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", ""),

		Scheduler:    strings.ToLower(getEnv("SCHEDULER", "auto")),
		RunAt:        getEnv("RUN_AT", "05:00"),
		PollInterval: getEnvDuration("POLL_INTERVAL", time.Minute),
		Timezone:     getEnv("TIMEZONE", "Local"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.SettingsEncryptionKey) < 32 {
		return fmt.Errorf("SETTINGS_ENCRYPTION_KEY must be at least 32 characters")
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	switch c.Scheduler {
	case "auto", "action", "cron":
	default:
		return fmt.Errorf("SCHEDULER must be one of auto, action, cron (got %q)", c.Scheduler)
	}
	if _, _, err := c.RunAtClock(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// RunAtClock parses RunAt into hour and minute.
func (c *Config) RunAtClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.RunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("RUN_AT must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location returns the server-local time zone used for scheduling and log dates.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
