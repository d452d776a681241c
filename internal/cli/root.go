// Package cli implements the leasedesk command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/leasedesk/internal/app"
	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/logging"
)

// Version information (set by goreleaser)
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	cfgFile        string
	dbPathFlag     string
	jsonOutput     bool
	jsonlOutput    bool
	verbose        bool
	watchMode      bool
	nonInteractive bool
	logLevelFlag   string
	actorFlag      string

	appConfig    *config.Config
	configLoader *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "leasedesk",
	Short: "Rental request approvals from the terminal",
	Long: `leasedesk manages regions, buildings, signers and rental requests,
and walks each request through its regional approval chain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput && jsonlOutput {
			return errors.New("--json and --jsonl are mutually exclusive")
		}
		if err := MustBeJSONLForWatch(); err != nil {
			return err
		}
		return initConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/leasedesk/config.yaml)")
	flags.StringVar(&dbPathFlag, "db", "", "database path (overrides database.path)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&watchMode, "watch", false, "stream updates (requires --jsonl)")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt")
	flags.StringVar(&logLevelFlag, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.StringVar(&actorFlag, "as", "", "act as this user (email or ID) instead of the saved context")
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; cancelling ctx stops long-running
// commands such as events --watch.
func ExecuteContext(ctx context.Context) error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
	return rootCmd.ExecuteContext(ctx)
}

func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	if dbPathFlag != "" {
		loader.Set("database.path", dbPathFlag)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	} else if !verbose {
		// CLI output is for humans; keep background logging quiet unless asked.
		level = "warn"
	}
	if err := logging.Init(logging.Config{
		Level:        level,
		Format:       cfg.Logging.Format,
		File:         cfg.Logging.File,
		EnableCaller: cfg.Logging.EnableCaller,
	}); err != nil {
		return err
	}

	appConfig = cfg
	configLoader = loader
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// IsVerbose reports whether --verbose was given.
func IsVerbose() bool {
	return verbose
}

// IsWatchMode reports whether --watch was given.
func IsWatchMode() bool {
	return watchMode
}

// IsNonInteractive reports whether prompts are disabled, either by flag or
// because there is no terminal.
func IsNonInteractive() bool {
	return nonInteractive || !hasTTY()
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if cfg.Database.Path == "" {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
	}
	a, err := app.Open(ctx, cfg, logging.Component("cli"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return a, nil
}

func contextStore() *config.ContextStore {
	path := ""
	if cfg := GetConfig(); cfg != nil && strings.TrimSpace(cfg.Global.ConfigDir) != "" {
		path = filepath.Join(cfg.Global.ConfigDir, "context.yaml")
	}
	return config.NewContextStore(path)
}
