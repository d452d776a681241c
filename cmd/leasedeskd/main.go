// Package main is the entry point for the leasedesk API daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/daemon"
	"github.com/tOgg1/leasedesk/internal/logging"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flagKeys maps daemon flags onto the config keys they override.
var flagKeys = map[string]string{
	"listen":     "api.listen_addr",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"log-file":   "logging.file",
	"db":         "database.path",
}

func main() {
	flags := pflag.NewFlagSet("leasedeskd", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "config file (default is $HOME/.config/leasedesk/config.yaml)")
	flags.String("listen", "", "address to listen on")
	flags.String("log-level", "", "logging level (debug, info, warn, error)")
	flags.String("log-format", "", "logging format (json, console)")
	flags.String("log-file", "", "write JSON logs to this file")
	flags.String("db", "", "SQLite database path")
	noRetention := flags.Bool("no-retention", false, "disable audit event pruning")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leasedeskd %s (%s, %s)\n", version, commit, date)
		return
	}

	loader := config.NewLoader()
	if *configFile != "" {
		loader.SetConfigFile(*configFile)
	}
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			loader.Set(key, f.Value.String())
		}
	})

	if err := run(loader, *noRetention); err != nil {
		fmt.Fprintf(os.Stderr, "leasedeskd: %v\n", err)
		os.Exit(1)
	}
}

func run(loader *config.Loader, noRetention bool) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		File:         cfg.Logging.File,
		EnableCaller: cfg.Logging.EnableCaller,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()

	logger := logging.Component("leasedeskd")
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Warn().Err(err).Msg("failed to create directories")
	}
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("config_file", loader.ConfigFileUsed()).
		Msg("leasedeskd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger, daemon.Options{DisableRetention: noRetention})
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("leasedeskd exited with error")
		return err
	}
	return nil
}
