package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/tOgg1/leasedesk/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(Config{
		Path:          filepath.Join(t.TempDir(), "leasedesk.db"),
		RetryAttempts: 10,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := database.Migrate(context.Background()); err != nil {
		database.Close()
		t.Fatalf("migrate: %v", err)
	}
	return database
}

type testFixture struct {
	region   *models.Region
	building *models.Building
	resident *models.User
}

func seedFixture(t *testing.T, store *Store) testFixture {
	t.Helper()
	ctx := context.Background()

	region := &models.Region{Name: "North"}
	if err := store.Regions.Create(ctx, region); err != nil {
		t.Fatalf("create region: %v", err)
	}
	building := &models.Building{Name: "Tower A", RegionID: region.ID, Floors: 12, PricePerM2: 30}
	if err := store.Buildings.Create(ctx, building); err != nil {
		t.Fatalf("create building: %v", err)
	}
	resident := &models.User{Email: "resident@example.com", Roles: models.NewRoleSet(models.RoleResident)}
	if err := store.Users.Create(ctx, resident); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return testFixture{region: region, building: building, resident: resident}
}

func createTestRequest(t *testing.T, store *Store, fx testFixture) *models.RentalRequest {
	t.Helper()
	req := &models.RentalRequest{
		UserID:         fx.resident.ID,
		BuildingID:     fx.building.ID,
		SelectedSpaces: json.RawMessage(`[{"floor":3,"area":120}]`),
		TotalPrice:     3600,
	}
	if err := store.Requests.Create(context.Background(), req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	applied, err := database.Migrate(context.Background())
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no migrations on second run, got %d", applied)
	}
}

func TestStoreInTxRollsBack(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx *Store) error {
		if err := tx.Regions.Create(ctx, &models.Region{Name: "South"}); err != nil {
			return err
		}
		return models.NewConflict("abort")
	})
	if err == nil {
		t.Fatal("expected error from transaction")
	}

	regions, err := store.Regions.List(ctx)
	if err != nil {
		t.Fatalf("list regions: %v", err)
	}
	if len(regions) != 0 {
		t.Fatalf("expected rollback to leave no regions, got %d", len(regions))
	}
}
