package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName     string
	AppEnv      string
	AppURL      string // Base URL for invitation links
	Port        string
	DisplayName string // Name this installation presents to contacts

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Relay (remote sharing service)
	RelayURL        string
	RelayTimeout    time.Duration
	RelaySecret     string // Only used by the relay binary to sign invitations
	RelayPort       string
	InviteExpiry    time.Duration
	RelayMessageTTL time.Duration // Unread relay messages older than this are dropped

	// Goal lifecycle
	TrashRetention time.Duration

	// Schedules (cron specs, empty disables the job)
	SchedulerEnabled   bool
	HintSweepSchedule  string
	TrashPurgeSchedule string
	SharePollSchedule  string
	BackupSchedule     string

	// Email
	EmailFrom    string
	ResendAPIKey string
	BackupEmail  string // Optional: receives a link after each backup

	// Backups older than this are pruned after each run (0 keeps all)
	BackupRetention time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage for backups (S3-compatible: MinIO, AWS S3, Cloudflare R2, etc.). Empty bucket disables backups.
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:     envString("APP_NAME", "Goalnest"),
		AppEnv:      envString("APP_ENV", "development"),
		AppURL:      envString("APP_URL", "http://localhost:8090"),
		Port:        envString("PORT", "8090"),
		DisplayName: envString("DISPLAY_NAME", "Me"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/goalnest.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Relay
		RelayURL:        envString("RELAY_URL", "http://localhost:8091"),
		RelayTimeout:    envDuration("RELAY_TIMEOUT", 15*time.Second),
		RelaySecret:     envString("RELAY_SECRET", ""),
		RelayPort:       envString("RELAY_PORT", "8091"),
		InviteExpiry:    envDuration("INVITE_EXPIRY", 168*time.Hour),     // 7 days
		RelayMessageTTL: envDuration("RELAY_MESSAGE_TTL", 720*time.Hour), // 30 days

		// Goal lifecycle
		TrashRetention: envDuration("TRASH_RETENTION", 168*time.Hour), // 7 days

		// Schedules
		SchedulerEnabled:   envBool("SCHEDULER_ENABLED", true),
		HintSweepSchedule:  envString("HINT_SWEEP_SCHEDULE", "@every 1h"),
		TrashPurgeSchedule: envString("TRASH_PURGE_SCHEDULE", "0 0 3 * * *"),
		SharePollSchedule:  envString("SHARE_POLL_SCHEDULE", "@every 5m"),
		BackupSchedule:     envString("BACKUP_SCHEDULE", "0 30 3 * * *"),

		// Email (RESEND_API_KEY optional in development)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),
		BackupEmail:  envString("BACKUP_EMAIL", ""),

		BackupRetention: envDuration("BACKUP_RETENTION", 720*time.Hour), // 30 days

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures services needed outside development are configured.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development to log invitation emails instead")
		os.Exit(1)
	}
}

// LoadRelay reads the settings the relay binary needs. RELAY_SECRET is required.
func LoadRelay() *Config {
	cfg := Load()
	cfg.RelaySecret = envRequired("RELAY_SECRET")
	return cfg
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) BackupsEnabled() bool {
	return c.S3Bucket != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// Safe to expose to the presentation layer.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:        c.AppName,
		AppEnv:         c.AppEnv,
		AppURL:         c.AppURL,
		Port:           c.Port,
		DisplayName:    c.DisplayName,
		RelayURL:       c.RelayURL,
		TrashRetention: c.TrashRetention,
	}
}
