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

// RegionRepository handles region persistence.
type RegionRepository struct {
	q querier
}

// Create adds a new region.
func (r *RegionRepository) Create(ctx context.Context, region *models.Region) error {
	region.Name = strings.TrimSpace(region.Name)
	if err := region.Validate(); err != nil {
		return err
	}
	if region.ID == "" {
		region.ID = uuid.New().String()
	}
	region.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO regions (id, name, created_at) VALUES (?, ?, ?)
	`, region.ID, region.Name, formatTime(region.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflict("region %s already exists", region.ID)
		}
		return fmt.Errorf("failed to insert region: %w", err)
	}
	return nil
}

// Get retrieves a region by ID.
func (r *RegionRepository) Get(ctx context.Context, id string) (*models.Region, error) {
	var region models.Region
	var createdAt string
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM regions WHERE id = ?
	`, id).Scan(&region.ID, &region.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("region", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query region: %w", err)
	}
	if region.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &region, nil
}

// List returns all regions ordered by name.
func (r *RegionRepository) List(ctx context.Context) ([]*models.Region, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, created_at FROM regions ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var regions []*models.Region
	for rows.Next() {
		var region models.Region
		var createdAt string
		if err := rows.Scan(&region.ID, &region.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		if region.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		regions = append(regions, &region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}
	return regions, nil
}

// Lookup resolves ref as a region ID, falling back to an exact name match.
// A name shared by several regions is a conflict.
func (r *RegionRepository) Lookup(ctx context.Context, ref string) (*models.Region, error) {
	region, err := r.Get(ctx, ref)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return region, err
	}

	rows, err := r.q.QueryContext(ctx, `SELECT id FROM regions WHERE name = ? LIMIT 2`, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}
	rows.Close()

	switch len(ids) {
	case 0:
		return nil, models.NewNotFound("region", ref)
	case 1:
		return r.Get(ctx, ids[0])
	default:
		return nil, models.NewConflict("region name %q is ambiguous", ref)
	}
}
