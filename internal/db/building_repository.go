package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/leasedesk/internal/models"
)

// BuildingRepository handles building persistence.
type BuildingRepository struct {
	q querier
}

const buildingColumns = `id, name, address, city, region_id, floors, total_area, price_per_m2, created_at`

// Create adds a new building. The region must exist.
func (r *BuildingRepository) Create(ctx context.Context, building *models.Building) error {
	building.Name = strings.TrimSpace(building.Name)
	if err := building.Validate(); err != nil {
		return err
	}
	if building.ID == "" {
		building.ID = uuid.New().String()
	}
	building.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO buildings (`+buildingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		building.ID,
		building.Name,
		emptyToNull(building.Address),
		emptyToNull(building.City),
		building.RegionID,
		building.Floors,
		building.TotalArea,
		building.PricePerM2,
		formatTime(building.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return models.NewNotFound("region", building.RegionID)
		}
		return fmt.Errorf("failed to insert building: %w", err)
	}
	return nil
}

// Get retrieves a building by ID.
func (r *BuildingRepository) Get(ctx context.Context, id string) (*models.Building, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = ?`, id)
	building, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("building", id)
	}
	return building, err
}

// List returns buildings, optionally filtered to a region.
func (r *BuildingRepository) List(ctx context.Context, regionID string) ([]*models.Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings`
	var args []any
	if regionID != "" {
		query += ` WHERE region_id = ?`
		args = append(args, regionID)
	}
	query += ` ORDER BY name, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buildings: %w", err)
	}
	defer rows.Close()

	var buildings []*models.Building
	for rows.Next() {
		building, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, building)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buildings: %w", err)
	}
	return buildings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuilding(row rowScanner) (*models.Building, error) {
	var building models.Building
	var address, city sql.NullString
	var createdAt string
	if err := row.Scan(
		&building.ID,
		&building.Name,
		&address,
		&city,
		&building.RegionID,
		&building.Floors,
		&building.TotalArea,
		&building.PricePerM2,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan building: %w", err)
	}
	building.Address = address.String
	building.City = city.String

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	building.CreatedAt = parsed
	return &building, nil
}
