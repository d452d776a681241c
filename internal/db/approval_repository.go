package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/leasedesk/internal/models"
)

// ApprovalRepository handles request approval task persistence.
type ApprovalRepository struct {
	q querier
}

const approvalColumns = `id, request_id, signer_id, status, action_at, reason, created_at`

// Create adds a new approval task to the database.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.RequestApproval) error {
	if approval.RequestID == "" {
		return fmt.Errorf("approval request id is required")
	}
	if approval.SignerID == "" {
		return fmt.Errorf("approval signer id is required")
	}

	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}

	approval.CreatedAt = time.Now().UTC()
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO request_approvals (`+approvalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		approval.ID,
		approval.RequestID,
		approval.SignerID,
		string(approval.Status),
		formatTimePtr(approval.ActionAt),
		emptyToNull(approval.Reason),
		formatTime(approval.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflict("signer %s already in chain of request %s", approval.SignerID, approval.RequestID)
		}
		return fmt.Errorf("failed to insert approval: %w", err)
	}

	return nil
}

// Get retrieves an approval task by ID.
func (r *ApprovalRepository) Get(ctx context.Context, id string) (*models.RequestApproval, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM request_approvals WHERE id = ?`, id)
	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("approval", id)
	}
	return approval, err
}

// ListByRequest lists a request's chain in creation order.
func (r *ApprovalRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.RequestApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM request_approvals
		WHERE request_id = ?
		ORDER BY created_at, rowid
	`, requestID)
}

// ListBySigner lists every task assigned to a signer, newest first.
func (r *ApprovalRepository) ListBySigner(ctx context.Context, signerID string) ([]*models.RequestApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM request_approvals
		WHERE signer_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, signerID)
}

// ListPendingBySigner lists pending tasks for a single signer, oldest first.
func (r *ApprovalRepository) ListPendingBySigner(ctx context.Context, signerID string) ([]*models.RequestApproval, error) {
	return r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM request_approvals
		WHERE signer_id = ? AND status = ?
		ORDER BY created_at, rowid
	`, signerID, string(models.ApprovalStatusPending))
}

// Resolve moves a pending task to status. It reports false when the task is
// missing or already resolved; callers distinguish the two with Get.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, status models.ApprovalStatus, reason string, at time.Time) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("approval id is required")
	}
	if status == "" || status == models.ApprovalStatusPending {
		return false, fmt.Errorf("approval status must be terminal")
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE request_approvals
		SET status = ?, action_at = ?, reason = ?
		WHERE id = ? AND status = ?
	`, string(status), formatTime(at), emptyToNull(reason), id, string(models.ApprovalStatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to update approval: %w", err)
	}
	return singleRowAffected(result)
}

// CancelPending cancels every pending task of a request and returns their IDs.
func (r *ApprovalRepository) CancelPending(ctx context.Context, requestID string, at time.Time) ([]string, error) {
	pending, err := r.query(ctx, `
		SELECT `+approvalColumns+`
		FROM request_approvals
		WHERE request_id = ? AND status = ?
		ORDER BY created_at, rowid
	`, requestID, string(models.ApprovalStatusPending))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(pending))
	for _, approval := range pending {
		ok, err := r.Resolve(ctx, approval.ID, models.ApprovalStatusCancelled, "", at)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, approval.ID)
		}
	}
	return ids, nil
}

// CountByStatus returns task counts per status for a request.
func (r *ApprovalRepository) CountByStatus(ctx context.Context, requestID string) (map[models.ApprovalStatus]int, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM request_approvals
		WHERE request_id = ?
		GROUP BY status
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ApprovalStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan approval count: %w", err)
		}
		counts[models.ApprovalStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval counts: %w", err)
	}

	return counts, nil
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...any) ([]*models.RequestApproval, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*models.RequestApproval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}
	return approvals, nil
}

func scanApproval(row rowScanner) (*models.RequestApproval, error) {
	var approval models.RequestApproval
	var status string
	var actionAt sql.NullString
	var reason sql.NullString
	var createdAt string

	if err := row.Scan(
		&approval.ID,
		&approval.RequestID,
		&approval.SignerID,
		&status,
		&actionAt,
		&reason,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}

	approval.Status = models.ApprovalStatus(status)
	approval.Reason = reason.String

	createdParsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	approval.CreatedAt = createdParsed

	if approval.ActionAt, err = parseNullableTime(actionAt); err != nil {
		return nil, fmt.Errorf("failed to parse action_at: %w", err)
	}

	return &approval, nil
}
