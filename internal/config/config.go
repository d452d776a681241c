// Package config loads leasedesk settings and the saved CLI context.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Config is the merged configuration of both binaries. Keys are the
// mapstructure tags, dotted by section: "workflow.cancel_on_veto".
type Config struct {
	Global         GlobalConfig         `yaml:"global" mapstructure:"global"`
	Database       DatabaseConfig       `yaml:"database" mapstructure:"database"`
	Logging        LoggingConfig        `yaml:"logging" mapstructure:"logging"`
	API            APIConfig            `yaml:"api" mapstructure:"api"`
	Workflow       WorkflowConfig       `yaml:"workflow" mapstructure:"workflow"`
	EventRetention EventRetentionConfig `yaml:"event_retention" mapstructure:"event_retention"`
	TUI            TUIConfig            `yaml:"tui" mapstructure:"tui"`
}

type GlobalConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

type DatabaseConfig struct {
	// Path defaults to DataDir/leasedesk.db.
	Path           string `yaml:"path" mapstructure:"path"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	BusyTimeoutMs  int    `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
	// Busy transactions are replayed up to RetryAttempts times, the delay
	// doubling from RetryBackoff.
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console or json
	// File, when set, receives JSON logs instead of stderr.
	File         string `yaml:"file" mapstructure:"file"`
	EnableCaller bool   `yaml:"enable_caller" mapstructure:"enable_caller"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	// JWTSecret signs bearer tokens. The daemon refuses to start without it.
	JWTSecret       string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type WorkflowConfig struct {
	// CancelOnVeto cancels the remaining pending tasks of a request once one
	// signer declines.
	CancelOnVeto bool `yaml:"cancel_on_veto" mapstructure:"cancel_on_veto"`
	// New signers get a login account with this password and role.
	InitialSignerPassword string `yaml:"initial_signer_password" mapstructure:"initial_signer_password"`
	SignerRole            string `yaml:"signer_role" mapstructure:"signer_role"`
}

// EventRetentionConfig drives the daemon's audit log pruner.
type EventRetentionConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAge          time.Duration `yaml:"max_age" mapstructure:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	BatchSize       int           `yaml:"batch_size" mapstructure:"batch_size"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
}

// DefaultConfig returns the built-in defaults, the lowest precedence layer.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "leasedesk"),
			ConfigDir: filepath.Join(homeDir, ".config", "leasedesk"),
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
			RetryAttempts:  5,
			RetryBackoff:   20 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			ListenAddr:      "127.0.0.1:8470",
			TokenTTL:        12 * time.Hour,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workflow: WorkflowConfig{
			SignerRole: string(models.RoleSigner),
		},
		EventRetention: EventRetentionConfig{
			MaxAge:          90 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			BatchSize:       1000,
		},
		TUI: TUIConfig{
			RefreshInterval: 2 * time.Second,
		},
	}
}

// Validate reports every invalid setting at once, keyed by its dotted name.
func (c *Config) Validate() error {
	v := &models.ValidationErrors{}
	check := func(ok bool, key, message string) {
		if !ok {
			v.AddMessage(key, message)
		}
	}

	check(c.Database.MaxConnections >= 1, "database.max_connections", "must be at least 1")
	check(c.Database.RetryAttempts >= 1, "database.retry_attempts", "must be at least 1")
	check(c.Database.RetryBackoff >= 0, "database.retry_backoff", "must not be negative")

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		v.Add("logging.level", err)
	}
	format := strings.ToLower(c.Logging.Format)
	check(format == "console" || format == "json", "logging.format", "must be one of console, json")

	check(strings.TrimSpace(c.API.ListenAddr) != "", "api.listen_addr", "is required")
	check(c.API.TokenTTL >= time.Minute, "api.token_ttl", "must be at least 1m")

	if _, err := models.ParseRole(c.Workflow.SignerRole); err != nil {
		v.Add("workflow.signer_role", err)
	}

	if r := c.EventRetention; r.Enabled {
		check(r.MaxAge > 0, "event_retention.max_age", "must be positive when retention is enabled")
		check(r.CleanupInterval >= time.Minute, "event_retention.cleanup_interval", "must be at least 1m")
	}

	check(c.TUI.RefreshInterval >= 100*time.Millisecond, "tui.refresh_interval", "must be at least 100ms")
	return v.Err()
}

// EnsureDirectories creates the data and config directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Global.DataDir, c.Global.ConfigDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is Database.Path, defaulting to leasedesk.db in DataDir.
func (c *Config) DatabasePath() string {
	if c.Database.Path == "" {
		return filepath.Join(c.Global.DataDir, "leasedesk.db")
	}
	return c.Database.Path
}
