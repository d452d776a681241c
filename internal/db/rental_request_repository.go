package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/leasedesk/internal/models"
)

// RentalRequestRepository handles rental request persistence.
type RentalRequestRepository struct {
	q querier
}

const requestColumns = `id, user_id, building_id, selected_spaces, total_price, status, created_at`

// Create inserts a pending rental request.
func (r *RentalRequestRepository) Create(ctx context.Context, req *models.RentalRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("rental request user id is required")
	}
	if req.BuildingID == "" {
		return fmt.Errorf("rental request building id is required")
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = models.RequestStatusPending
	req.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rental_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.UserID,
		req.BuildingID,
		string(req.SelectedSpaces),
		req.TotalPrice,
		string(req.Status),
		formatTime(req.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return models.NewNotFound("user", req.UserID)
		}
		return fmt.Errorf("failed to insert rental request: %w", err)
	}
	return nil
}

// Get retrieves a rental request by ID.
func (r *RentalRequestRepository) Get(ctx context.Context, id string) (*models.RentalRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rental_requests WHERE id = ?`, id)
	req, err := scanRentalRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("rental request", id)
	}
	return req, err
}

// ListByUser returns a user's requests, newest first.
func (r *RentalRequestRepository) ListByUser(ctx context.Context, userID string) ([]*models.RentalRequest, error) {
	return r.query(ctx, `
		SELECT `+requestColumns+`
		FROM rental_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
}

// List returns every request, newest first, optionally restricted to status.
func (r *RentalRequestRepository) List(ctx context.Context, status models.RequestStatus) ([]*models.RentalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM rental_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	return r.query(ctx, query, args...)
}

// ApproveIfComplete flips a pending request to approved when none of its
// approval tasks is still outstanding. It reports whether this call made the
// transition; at most one caller ever observes true for a request.
func (r *RentalRequestRepository) ApproveIfComplete(ctx context.Context, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE rental_requests
		SET status = ?
		WHERE id = ?
			AND status = ?
			AND NOT EXISTS (
				SELECT 1 FROM request_approvals
				WHERE request_id = rental_requests.id AND status != ?
			)
	`,
		string(models.RequestStatusApproved),
		id,
		string(models.RequestStatusPending),
		string(models.ApprovalStatusApproved),
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve rental request: %w", err)
	}
	return singleRowAffected(result)
}

// Reject flips a pending request to rejected and reports whether this call
// made the transition.
func (r *RentalRequestRepository) Reject(ctx context.Context, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE rental_requests SET status = ? WHERE id = ? AND status = ?
	`, string(models.RequestStatusRejected), id, string(models.RequestStatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to reject rental request: %w", err)
	}
	return singleRowAffected(result)
}

func (r *RentalRequestRepository) query(ctx context.Context, query string, args ...any) ([]*models.RentalRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rental requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.RentalRequest
	for rows.Next() {
		req, err := scanRentalRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rental requests: %w", err)
	}
	return requests, nil
}

func singleRowAffected(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func scanRentalRequest(row rowScanner) (*models.RentalRequest, error) {
	var req models.RentalRequest
	var selected, status, createdAt string
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.BuildingID,
		&selected,
		&req.TotalPrice,
		&status,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rental request: %w", err)
	}
	req.SelectedSpaces = json.RawMessage(selected)
	req.Status = models.RequestStatus(status)

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	req.CreatedAt = parsed
	return &req, nil
}
