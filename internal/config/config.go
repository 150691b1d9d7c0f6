// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OAuthConfig holds the brokerage OAuth integration settings.
// The client secret is only ever used server-side when exchanging or
// refreshing tokens; it never appears in any response payload.
type OAuthConfig struct {
	ClientID      string
	ClientSecret  string
	AuthEndpoint  string // Brokerage authorization page
	TokenEndpoint string // Backend proxy token endpoint (exchange + refresh)
	Scope         string
	// RedirectTargets maps a caller context ("admin", "portal", ...) to the
	// callback URL registered with the brokerage for that context.
	RedirectTargets map[string]string
	StateTTL        time.Duration
}

// BrokerageConfig holds the brokerage data API settings.
type BrokerageConfig struct {
	APIBaseURL   string
	FallbackHost string // Alternate address for the same API, tried once on transport failure
	MinInterval  time.Duration
	Timeout      time.Duration
}

// BackupConfig holds the S3 database backup settings.
// When AccessKeyID/SecretAccessKey are empty the default AWS credential
// chain is used (environment, shared config, instance role).
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Prefix          string
	Schedule        string // cron spec
	AccessKeyID     string
	SecretAccessKey string
}

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the SQLite database (always absolute)
	Port             int
	DevMode          bool
	LogLevel         string
	OAuth            OAuthConfig
	Brokerage        BrokerageConfig
	Backup           BackupConfig
	SyncSchedule     string // cron spec for the nightly positions sync
	SnapshotSchedule string // cron spec for the daily snapshot capture
}

// SettingsProvider is the subset of the settings repository used by config.
type SettingsProvider interface {
	Get(key string) (*string, error)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BROKERSYNC_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		OAuth: OAuthConfig{
			ClientID:        getEnv("BROKER_CLIENT_ID", ""),
			ClientSecret:    getEnv("BROKER_CLIENT_SECRET", ""),
			AuthEndpoint:    getEnv("BROKER_AUTH_ENDPOINT", "https://api.brokerage.com/v1/oauth/authorize"),
			TokenEndpoint:   getEnv("BROKER_TOKEN_ENDPOINT", ""),
			Scope:           getEnv("BROKER_SCOPE", "readonly"),
			RedirectTargets: parseRedirectTargets(getEnv("BROKER_REDIRECT_TARGETS", "")),
			StateTTL:        time.Duration(getEnvAsInt("OAUTH_STATE_TTL_SECONDS", 600)) * time.Second,
		},
		Brokerage: BrokerageConfig{
			APIBaseURL:   getEnv("BROKER_API_URL", "https://api.brokerage.com/v1"),
			FallbackHost: getEnv("BROKER_API_FALLBACK_HOST", ""),
			MinInterval:  time.Duration(getEnvAsInt("BROKER_MIN_INTERVAL_MS", 500)) * time.Millisecond,
			Timeout:      time.Duration(getEnvAsInt("BROKER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Region:          getEnv("BACKUP_S3_REGION", "eu-central-1"),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "brokersync"),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			AccessKeyID:     getEnv("BACKUP_AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_AWS_SECRET_ACCESS_KEY", ""),
		},
		SyncSchedule:     getEnv("SYNC_SCHEDULE", "0 30 22 * * MON-FRI"),
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "0 45 22 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings table.
// This should be called after the database is initialized.
// Settings values take precedence over environment variables when non-empty.
func (c *Config) UpdateFromSettings(settings SettingsProvider) error {
	clientID, err := settings.Get("broker_client_id")
	if err != nil {
		return fmt.Errorf("failed to get broker_client_id from settings: %w", err)
	}
	if clientID != nil && *clientID != "" {
		c.OAuth.ClientID = *clientID
	}

	clientSecret, err := settings.Get("broker_client_secret")
	if err != nil {
		return fmt.Errorf("failed to get broker_client_secret from settings: %w", err)
	}
	if clientSecret != nil && *clientSecret != "" {
		c.OAuth.ClientSecret = *clientSecret
	}

	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when backups are enabled")
	}
	return nil
}

// parseRedirectTargets parses "admin=https://a/cb,portal=https://p/cb"
// into a context -> callback URL map.
func parseRedirectTargets(raw string) map[string]string {
	targets := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key != "" && val != "" {
			targets[key] = val
		}
	}
	return targets
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
