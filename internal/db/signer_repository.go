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

// SignerRepository handles signer roster persistence.
type SignerRepository struct {
	q querier
}

const signerColumns = `id, name, position, email, phone, region_id, signing_order, status, created_at, updated_at`

// Create inserts a signer. Rank uniqueness is checked by the caller; the
// partial unique index is the backstop.
func (r *SignerRepository) Create(ctx context.Context, signer *models.Signer) error {
	normalizeSigner(signer)
	if err := signer.Validate(); err != nil {
		return err
	}
	if signer.ID == "" {
		signer.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	signer.CreatedAt = now
	signer.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO signers (`+signerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		signer.ID,
		signer.Name,
		emptyToNull(signer.Position),
		signer.Email,
		emptyToNull(signer.Phone),
		nullableString(signer.RegionID),
		signer.SigningOrder,
		string(signer.Status),
		formatTime(signer.CreatedAt),
		formatTime(signer.UpdatedAt),
	)
	if err != nil {
		return translateSignerWriteError(err, signer)
	}
	return nil
}

// Update writes every mutable field of signer.
func (r *SignerRepository) Update(ctx context.Context, signer *models.Signer) error {
	normalizeSigner(signer)
	if err := signer.Validate(); err != nil {
		return err
	}
	signer.UpdatedAt = time.Now().UTC()

	result, err := r.q.ExecContext(ctx, `
		UPDATE signers
		SET name = ?, position = ?, email = ?, phone = ?, region_id = ?,
			signing_order = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		signer.Name,
		emptyToNull(signer.Position),
		signer.Email,
		emptyToNull(signer.Phone),
		nullableString(signer.RegionID),
		signer.SigningOrder,
		string(signer.Status),
		formatTime(signer.UpdatedAt),
		signer.ID,
	)
	if err != nil {
		return translateSignerWriteError(err, signer)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("signer", signer.ID)
	}
	return nil
}

// Delete removes a signer. Approval tasks referencing it are kept.
func (r *SignerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM signers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete signer: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("signer", id)
	}
	return nil
}

// Get retrieves a signer by ID.
func (r *SignerRepository) Get(ctx context.Context, id string) (*models.Signer, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+signerColumns+` FROM signers WHERE id = ?`, id)
	signer, err := scanSigner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("signer", id)
	}
	return signer, err
}

// GetByEmail returns the earliest-registered signer with the given email.
func (r *SignerRepository) GetByEmail(ctx context.Context, email string) (*models.Signer, error) {
	email = models.NormalizeEmail(email)
	row := r.q.QueryRowContext(ctx, `
		SELECT `+signerColumns+` FROM signers WHERE email = ? ORDER BY seq LIMIT 1
	`, email)
	signer, err := scanSigner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("signer", email)
	}
	return signer, err
}

// List returns signers matching filter ordered by rank, then registration order.
func (r *SignerRepository) List(ctx context.Context, filter models.SignerFilter) ([]*models.Signer, error) {
	query := `SELECT ` + signerColumns + ` FROM signers`
	var conditions []string
	var args []any
	if filter.RegionID != nil {
		conditions = append(conditions, `region_id = ?`)
		args = append(args, *filter.RegionID)
	}
	if position := strings.TrimSpace(filter.Position); position != "" {
		conditions = append(conditions, `position = ?`)
		args = append(args, position)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ORDER BY signing_order ASC, seq ASC`

	return r.query(ctx, query, args...)
}

// ResolveChain returns the active signers scoped to regionID or global,
// ordered ascending by rank. A regional and a global signer sharing a rank
// are both returned, in registration order.
func (r *SignerRepository) ResolveChain(ctx context.Context, regionID string) ([]*models.Signer, error) {
	return r.query(ctx, `
		SELECT `+signerColumns+`
		FROM signers
		WHERE (region_id = ? OR region_id IS NULL) AND status = ?
		ORDER BY signing_order ASC, seq ASC
	`, regionID, string(models.SignerStatusActive))
}

// RankTaken reports whether another signer in regionID already holds rank.
func (r *SignerRepository) RankTaken(ctx context.Context, regionID string, rank int, excludeID string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM signers
		WHERE region_id = ? AND signing_order = ? AND id != ?
	`, regionID, rank, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check signing order: %w", err)
	}
	return count > 0, nil
}

func (r *SignerRepository) query(ctx context.Context, query string, args ...any) ([]*models.Signer, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signers: %w", err)
	}
	defer rows.Close()

	var signers []*models.Signer
	for rows.Next() {
		signer, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signers: %w", err)
	}
	return signers, nil
}

func normalizeSigner(signer *models.Signer) {
	signer.Name = strings.TrimSpace(signer.Name)
	signer.Position = strings.TrimSpace(signer.Position)
	signer.Email = models.NormalizeEmail(signer.Email)
	signer.Phone = strings.TrimSpace(signer.Phone)
	if signer.Status == "" {
		signer.Status = models.SignerStatusActive
	}
}

func translateSignerWriteError(err error, signer *models.Signer) error {
	switch {
	case isUniqueConstraintError(err) && strings.Contains(err.Error(), "signing_order"):
		return models.NewConflict("signing order %d already used in region %s", signer.SigningOrder, signer.Scope())
	case isUniqueConstraintError(err):
		return models.NewConflict("signer %s already exists", signer.ID)
	case isForeignKeyError(err) && signer.RegionID != nil:
		return models.NewNotFound("region", *signer.RegionID)
	default:
		return fmt.Errorf("failed to write signer: %w", err)
	}
}

func scanSigner(row rowScanner) (*models.Signer, error) {
	var signer models.Signer
	var position, phone, regionID sql.NullString
	var status, createdAt, updatedAt string
	if err := row.Scan(
		&signer.ID,
		&signer.Name,
		&position,
		&signer.Email,
		&phone,
		&regionID,
		&signer.SigningOrder,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan signer: %w", err)
	}
	signer.Position = position.String
	signer.Phone = phone.String
	signer.Status = models.SignerStatus(status)
	if regionID.Valid {
		id := regionID.String
		signer.RegionID = &id
	}

	var err error
	if signer.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if signer.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &signer, nil
}
