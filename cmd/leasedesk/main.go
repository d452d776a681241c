// Package main is the entry point for the leasedesk CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tOgg1/leasedesk/internal/cli"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version, cli.Commit, cli.Date = version, commit, date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return 2
	case errors.Is(err, models.ErrNotFound):
		return 3
	case errors.Is(err, models.ErrConflict):
		return 4
	case errors.Is(err, models.ErrForbidden):
		return 5
	default:
		return 1
	}
}
