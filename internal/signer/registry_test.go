package signer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/testutil"
)

type captured struct {
	mu     sync.Mutex
	events []*models.Event
}

func (c *captured) handle(ctx context.Context, event *models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captured) types() []models.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.EventType, len(c.events))
	for i, event := range c.events {
		out[i] = event.Type
	}
	return out
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *db.Store, *captured) {
	t.Helper()
	store := testutil.OpenStore(t)
	pub := events.NewBus(zerolog.Nop())
	t.Cleanup(pub.Close)
	seen := &captured{}
	pub.Subscribe("test", events.Filter{}, seen.handle)
	opts = append([]Option{WithPublisher(pub)}, opts...)
	return NewRegistry(store, opts...), store, seen
}

func strPtr(s string) *string { return &s }

func TestCreateProvisionsLogin(t *testing.T) {
	ctx := context.Background()
	reg, store, seen := newTestRegistry(t, WithProvisioning(Provisioning{InitialPassword: "welcome-1"}))
	region := testutil.CreateRegion(t, store, "North")

	s := &models.Signer{Name: "Ann Lee", Email: "Ann@Example.com", RegionID: &region.ID, SigningOrder: 1}
	require.NoError(t, reg.Create(ctx, "admin-1", s))
	require.NotEmpty(t, s.ID)
	require.Equal(t, models.SignerStatusActive, s.Status)

	user, err := store.Users.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.True(t, user.Roles.Has(models.RoleSigner))
	require.True(t, user.MustChangePassword)
	require.True(t, auth.CheckPassword("welcome-1", user.PasswordHash))

	require.Equal(t, []models.EventType{models.EventTypeSignerCreated}, seen.types())
	stored, err := store.Events.ForEntity(ctx, models.EntityTypeSigner, s.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "admin-1", stored[0].ActorID)
}

func TestCreateAddsRoleToExistingUser(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)
	existing := testutil.CreateUser(t, store, "bob@example.com", models.RoleResident)

	require.NoError(t, reg.Create(ctx, "", &models.Signer{Name: "Bob", Email: "bob@example.com", SigningOrder: 3}))

	user, err := store.Users.Get(ctx, existing.ID)
	require.NoError(t, err)
	require.True(t, user.Roles.Has(models.RoleResident))
	require.True(t, user.Roles.Has(models.RoleSigner))
}

func TestCreateInactiveSkipsProvisioning(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)

	s := &models.Signer{Name: "Cy", Email: "cy@example.com", SigningOrder: 1, Status: models.SignerStatusInactive}
	require.NoError(t, reg.Create(ctx, "", s))

	_, err := store.Users.GetByEmail(ctx, "cy@example.com")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateRejectsDuplicateRegionalRank(t *testing.T) {
	ctx := context.Background()
	reg, store, seen := newTestRegistry(t)
	region := testutil.CreateRegion(t, store, "North")

	require.NoError(t, reg.Create(ctx, "", &models.Signer{Name: "A", Email: "a@example.com", RegionID: &region.ID, SigningOrder: 1}))
	err := reg.Create(ctx, "", &models.Signer{Name: "B", Email: "b@example.com", RegionID: &region.ID, SigningOrder: 1})
	require.ErrorIs(t, err, models.ErrConflict)

	// The failed create left no user behind.
	_, err = store.Users.GetByEmail(ctx, "b@example.com")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Len(t, seen.types(), 1)

	// Global signers may share a rank with a regional one.
	require.NoError(t, reg.Create(ctx, "", &models.Signer{Name: "G", Email: "g@example.com", SigningOrder: 1}))
}

func TestCreateUnknownRegion(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	err := reg.Create(context.Background(), "", &models.Signer{Name: "A", Email: "a@example.com", RegionID: strPtr("missing"), SigningOrder: 1})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	err := reg.Create(context.Background(), "", &models.Signer{Name: "", Email: "nope", SigningOrder: 1})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateChecksRankInTargetRegion(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)
	north := testutil.CreateRegion(t, store, "North")
	south := testutil.CreateRegion(t, store, "South")

	testutil.CreateSigner(t, store, "south1@example.com", &south.ID, 1)
	moving := testutil.CreateSigner(t, store, "north1@example.com", &north.ID, 1)

	_, err := reg.Update(ctx, "", moving.ID, models.SignerUpdate{RegionID: models.Some(&south.ID)})
	require.ErrorIs(t, err, models.ErrConflict)

	updated, err := reg.Update(ctx, "", moving.ID, models.SignerUpdate{
		RegionID:     models.Some(&south.ID),
		SigningOrder: models.Some(2),
	})
	require.NoError(t, err)
	require.Equal(t, south.ID, *updated.RegionID)
	require.Equal(t, 2, updated.SigningOrder)

	// Keeping its own rank is not a conflict.
	_, err = reg.Update(ctx, "", moving.ID, models.SignerUpdate{Position: models.Some("Director")})
	require.NoError(t, err)
}

func TestUpdateActivationProvisions(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)

	s := &models.Signer{Name: "Dee", Email: "dee@example.com", SigningOrder: 1, Status: models.SignerStatusInactive}
	require.NoError(t, reg.Create(ctx, "", s))

	_, err := reg.Update(ctx, "", s.ID, models.SignerUpdate{Status: models.Some(models.SignerStatusActive)})
	require.NoError(t, err)

	user, err := store.Users.GetByEmail(ctx, "dee@example.com")
	require.NoError(t, err)
	require.True(t, user.Roles.Has(models.RoleSigner))
	// No initial password configured, so the account cannot log in yet.
	require.Empty(t, user.PasswordHash)
}

func TestUpdateEmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Update(ctx, "", "missing", models.SignerUpdate{})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = reg.Update(ctx, "", "missing", models.SignerUpdate{Name: models.Some("x")})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	reg, store, seen := newTestRegistry(t)
	s := testutil.CreateSigner(t, store, "", nil, 1)

	require.NoError(t, reg.Delete(ctx, "admin", s.ID))
	_, err := reg.Get(ctx, s.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, reg.Delete(ctx, "admin", s.ID), models.ErrNotFound)
	require.Equal(t, []models.EventType{models.EventTypeSignerDeleted}, seen.types())
}

func TestResolveChain(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)
	region := testutil.CreateRegion(t, store, "North")
	other := testutil.CreateRegion(t, store, "South")

	second := testutil.CreateSigner(t, store, "r2@example.com", &region.ID, 2)
	global := testutil.CreateSigner(t, store, "g1@example.com", nil, 1)
	first := testutil.CreateSigner(t, store, "r1@example.com", &region.ID, 1)
	testutil.CreateSigner(t, store, "o1@example.com", &other.ID, 1)

	chain, err := reg.ResolveChain(ctx, region.ID)
	require.NoError(t, err)
	ids := make([]string, len(chain))
	for i, s := range chain {
		ids[i] = s.ID
	}
	require.Equal(t, []string{global.ID, first.ID, second.ID}, ids)

	_, err = reg.ResolveChain(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

const rosterYAML = `
signers:
  - name: Ann Lee
    position: Director
    email: ann@example.com
    region: North
    signing_order: 1
  - name: Bo Chen
    email: bo@example.com
    signing_order: 5
    status: inactive
`

func TestImportRoster(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)
	region := testutil.CreateRegion(t, store, "North")

	roster, err := ParseRoster(strings.NewReader(rosterYAML))
	require.NoError(t, err)
	require.Len(t, roster.Signers, 2)

	result, err := reg.Import(ctx, "admin", roster)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 0, result.Updated)
	require.Equal(t, region.ID, *result.Signers[0].RegionID)
	require.Nil(t, result.Signers[1].RegionID)
	require.Equal(t, models.SignerStatusInactive, result.Signers[1].Status)

	// Re-importing updates in place.
	roster.Signers[0].Position = "Head of Leasing"
	roster.Signers[1].Status = "active"
	result, err = reg.Import(ctx, "admin", roster)
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 2, result.Updated)

	all, err := reg.List(ctx, models.SignerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Head of Leasing", all[0].Position)

	_, err = store.Users.GetByEmail(ctx, "bo@example.com")
	require.NoError(t, err)
}

func TestImportRosterIsAtomic(t *testing.T) {
	ctx := context.Background()
	reg, store, _ := newTestRegistry(t)
	testutil.CreateRegion(t, store, "North")

	roster := &Roster{Signers: []RosterEntry{
		{Name: "Ok", Email: "ok@example.com", Region: "North", SigningOrder: 1},
		{Name: "Clash", Email: "clash@example.com", Region: "North", SigningOrder: 1},
	}}
	_, err := reg.Import(ctx, "", roster)
	require.ErrorIs(t, err, models.ErrConflict)
	require.Contains(t, err.Error(), "signers[1]")

	all, err := reg.List(ctx, models.SignerFilter{})
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = reg.Import(ctx, "", &Roster{Signers: []RosterEntry{{Name: "X", Email: "x@example.com", Region: "Nowhere"}}})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestParseRosterRejectsUnknownKeys(t *testing.T) {
	_, err := ParseRoster(strings.NewReader("signers:\n  - name: A\n    rank: 1\n"))
	require.ErrorIs(t, err, models.ErrValidation)

	roster, err := ParseRoster(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, roster.Signers)
}
