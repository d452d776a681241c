// Package app opens the database and wires the workflow services shared by
// the CLI and the daemon.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/signer"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

// App bundles the opened store and the services built on it.
type App struct {
	DB        *db.DB
	Store     *db.Store
	Publisher *events.Bus
	Engine    *workflow.Engine
	Signers   *signer.Registry
}

// Open opens and migrates the configured database and builds the services.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	database, err := db.Open(db.Config{
		Path:           cfg.DatabasePath(),
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeoutMs:  cfg.Database.BusyTimeoutMs,
		RetryAttempts:  cfg.Database.RetryAttempts,
		RetryBackoff:   cfg.Database.RetryBackoff,
	})
	if err != nil {
		return nil, err
	}

	applied, err := database.Migrate(ctx)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		logger.Info().Int("migrations", applied).Str("path", database.Path()).Msg("database migrated")
	}

	role, err := models.ParseRole(cfg.Workflow.SignerRole)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	store := db.NewStore(database)
	pub := events.NewBus(logger.With().Str("component", "events").Logger())
	return &App{
		DB:        database,
		Store:     store,
		Publisher: pub,
		Engine: workflow.NewEngine(store,
			workflow.WithPublisher(pub),
			workflow.WithCancelOnVeto(cfg.Workflow.CancelOnVeto),
		),
		Signers: signer.NewRegistry(store,
			signer.WithPublisher(pub),
			signer.WithProvisioning(signer.Provisioning{
				InitialPassword: cfg.Workflow.InitialSignerPassword,
				Role:            role,
			}),
		),
	}, nil
}

// Close releases the publisher and the database.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Publisher.Close()
	return a.DB.Close()
}
