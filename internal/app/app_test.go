package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/leasedesk/internal/config"
	"github.com/tOgg1/leasedesk/internal/models"
)

func TestOpenWiresServices(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Global.DataDir = t.TempDir()
	cfg.Database.Path = filepath.Join(cfg.Global.DataDir, "leasedesk.db")
	cfg.Workflow.InitialSignerPassword = "first-login"

	a, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	require.NoError(t, a.Signers.Create(ctx, "", &models.Signer{Name: "Ann", Email: "ann@example.com", SigningOrder: 1}))
	user, err := a.Store.Users.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.True(t, user.Roles.Has(models.RoleSigner))
	require.NotEmpty(t, user.PasswordHash)

	// Reopening an already migrated database is fine.
	again, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpenRejectsBadRole(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "leasedesk.db")
	cfg.Workflow.SignerRole = "overlord"

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}
