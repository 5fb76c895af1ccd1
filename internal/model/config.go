package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig selects the SQL driver and data source.
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// IMAPConfig configures the IMAP mailbox backend. The password is read
// from the keyring or STUDYFLOW_IMAP_PASSWORD, never from this file.
type IMAPConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	TLS        bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox    string `mapstructure:"mailbox" yaml:"mailbox"`
	Limit      int    `mapstructure:"limit" yaml:"limit"`
	WindowDays int    `mapstructure:"window_days" yaml:"window_days"`
}

// GmailConfig configures the Gmail API mailbox backend.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	MaxResults      int    `mapstructure:"max_results" yaml:"max_results"`
	WindowDays      int    `mapstructure:"window_days" yaml:"window_days"`
}

// EmailConfig selects and configures the mailbox backend.
type EmailConfig struct {
	// Provider is "fixture", "imap" or "gmail".
	Provider string      `mapstructure:"provider" yaml:"provider"`
	IMAP     IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	Gmail    GmailConfig `mapstructure:"gmail" yaml:"gmail"`
}

// AIConfig holds settings for the task extraction model.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
}

// SyncConfig tunes the sync orchestrator.
type SyncConfig struct {
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Timezone            string        `mapstructure:"timezone" yaml:"timezone"`
	FirstSyncWindowDays int           `mapstructure:"first_sync_window_days" yaml:"first_sync_window_days"`
	MaxAttempts         int           `mapstructure:"max_attempts" yaml:"max_attempts"`

	// Lock is "memory" or "redis".
	Lock      string `mapstructure:"lock" yaml:"lock"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// Location resolves the configured timezone, falling back to the
// process local zone when unset.
func (c SyncConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SchedulerConfig controls the background scheduled-sync poller.
type SchedulerConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalSec int  `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Email     EmailConfig     `mapstructure:"email" yaml:"email"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/studyflow/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "studyflow", "config.yaml")
}

// DefaultDatabasePath returns the SQLite file used when no DSN is set.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "studyflow.db"
	}
	return filepath.Join(home, ".local", "share", "studyflow", "studyflow.db")
}

var configDefaults = map[string]any{
	"server.addr":                 ":8080",
	"server.allowed_origins":      []string{"http://localhost:3000"},
	"database.driver":             "sqlite",
	"database.dsn":                "",
	"email.provider":              "fixture",
	"email.imap.port":             993,
	"email.imap.tls":              true,
	"email.imap.mailbox":          "INBOX",
	"email.imap.limit":            50,
	"email.imap.window_days":      30,
	"email.gmail.max_results":     20,
	"email.gmail.window_days":     30,
	"ai.model":                    "claude-sonnet-4-20250514",
	"ai.max_tokens":               4096,
	"ai.base_url":                 "https://api.anthropic.com",
	"sync.timeout":                2 * time.Minute,
	"sync.timezone":               "Local",
	"sync.first_sync_window_days": 21,
	"sync.max_attempts":           3,
	"sync.lock":                   "memory",
	"sync.redis_addr":             "localhost:6379",
	"scheduler.enabled":           false,
	"scheduler.interval_sec":      30,
	"log.level":                   "info",
	"log.format":                  "text",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with STUDYFLOW_ override file values
// (server.addr -> STUDYFLOW_SERVER_ADDR). A missing file yields defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("studyflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = DefaultDatabasePath()
	}
	if cfg.Sync.MaxAttempts < 1 {
		cfg.Sync.MaxAttempts = 1
	}

	return cfg, nil
}
