// Package testutil provides database and fixture helpers for tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
)

// OpenDB returns a migrated, file-backed database in t.TempDir so that
// concurrent goroutines share one database. It is closed on cleanup.
func OpenDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(db.Config{
		Path:           filepath.Join(t.TempDir(), "leasedesk.db"),
		MaxConnections: 8,
		BusyTimeoutMs:  5000,
		RetryAttempts:  20,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if _, err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

// OpenStore is OpenDB wrapped in a Store.
func OpenStore(t *testing.T) *db.Store {
	t.Helper()
	return db.NewStore(OpenDB(t))
}

var fixtureSeq atomic.Int64

func nextSeq() int64 {
	return fixtureSeq.Add(1)
}

// CreateRegion inserts a region.
func CreateRegion(t *testing.T, store *db.Store, name string) *models.Region {
	t.Helper()
	if name == "" {
		name = fmt.Sprintf("region-%d", nextSeq())
	}
	region := &models.Region{Name: name}
	if err := store.Regions.Create(context.Background(), region); err != nil {
		t.Fatalf("create region: %v", err)
	}
	return region
}

// CreateBuilding inserts a building in regionID.
func CreateBuilding(t *testing.T, store *db.Store, regionID string) *models.Building {
	t.Helper()
	building := &models.Building{
		Name:       fmt.Sprintf("Building %d", nextSeq()),
		Address:    "1 Main St",
		City:       "Springfield",
		RegionID:   regionID,
		Floors:     10,
		TotalArea:  5000,
		PricePerM2: 25,
	}
	if err := store.Buildings.Create(context.Background(), building); err != nil {
		t.Fatalf("create building: %v", err)
	}
	return building
}

// CreateUser inserts a user holding roles. An empty email is generated.
func CreateUser(t *testing.T, store *db.Store, email string, roles ...models.Role) *models.User {
	t.Helper()
	if email == "" {
		email = fmt.Sprintf("user%d@example.com", nextSeq())
	}
	if len(roles) == 0 {
		roles = []models.Role{models.RoleResident}
	}
	user := &models.User{
		Name:  email,
		Email: email,
		Roles: models.NewRoleSet(roles...),
	}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateSigner inserts an active signer. A nil regionID makes it global.
func CreateSigner(t *testing.T, store *db.Store, email string, regionID *string, rank int) *models.Signer {
	t.Helper()
	if email == "" {
		email = fmt.Sprintf("signer%d@example.com", nextSeq())
	}
	signer := &models.Signer{
		Name:         email,
		Position:     "Approver",
		Email:        email,
		RegionID:     regionID,
		SigningOrder: rank,
		Status:       models.SignerStatusActive,
	}
	if err := store.Signers.Create(context.Background(), signer); err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

// Selection returns a one-space selection payload.
func Selection() json.RawMessage {
	return json.RawMessage(`[{"floor":2,"room":"201","area":80}]`)
}
