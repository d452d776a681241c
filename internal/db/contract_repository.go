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

// ContractRepository handles contract persistence.
type ContractRepository struct {
	q querier
}

const contractColumns = `id, request_id, building_id, user_id, selected_spaces, total_price, zero_risk, zero_risk_doc, status, created_at`

// Create inserts a contract. A second contract for the same request fails
// with a ConflictError.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	if contract.RequestID == "" {
		return fmt.Errorf("contract request id is required")
	}
	if contract.ID == "" {
		contract.ID = uuid.New().String()
	}
	if contract.Status == "" {
		contract.Status = models.ContractStatusApproved
	}
	contract.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO contracts (`+contractColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		contract.ID,
		contract.RequestID,
		contract.BuildingID,
		contract.UserID,
		string(contract.SelectedSpaces),
		contract.TotalPrice,
		boolToInt(contract.ZeroRisk),
		emptyToNull(contract.ZeroRiskDoc),
		string(contract.Status),
		formatTime(contract.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflict("contract already exists for request %s", contract.RequestID)
		}
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

// Get retrieves a contract by ID.
func (r *ContractRepository) Get(ctx context.Context, id string) (*models.Contract, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	contract, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("contract", id)
	}
	return contract, err
}

// GetByRequest retrieves the contract materialized from a request.
func (r *ContractRepository) GetByRequest(ctx context.Context, requestID string) (*models.Contract, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE request_id = ?`, requestID)
	contract, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("contract for request", requestID)
	}
	return contract, err
}

// List returns contracts, newest first, optionally restricted to one user.
func (r *ContractRepository) List(ctx context.Context, userID string) ([]*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}
	return contracts, nil
}

// CountByRequest returns how many contracts reference a request.
func (r *ContractRepository) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts WHERE request_id = ?`, requestID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	return count, nil
}

// Update writes the administrative fields of a contract.
func (r *ContractRepository) Update(ctx context.Context, contract *models.Contract) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE contracts SET status = ?, zero_risk = ?, zero_risk_doc = ? WHERE id = ?
	`, string(contract.Status), boolToInt(contract.ZeroRisk), emptyToNull(contract.ZeroRiskDoc), contract.ID)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	ok, err := singleRowAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFound("contract", contract.ID)
	}
	return nil
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var contract models.Contract
	var selected, status, createdAt string
	var zeroRisk int
	var zeroRiskDoc sql.NullString
	if err := row.Scan(
		&contract.ID,
		&contract.RequestID,
		&contract.BuildingID,
		&contract.UserID,
		&selected,
		&contract.TotalPrice,
		&zeroRisk,
		&zeroRiskDoc,
		&status,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}
	contract.SelectedSpaces = json.RawMessage(selected)
	contract.ZeroRisk = zeroRisk != 0
	contract.ZeroRiskDoc = zeroRiskDoc.String
	contract.Status = models.ContractStatus(status)

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	contract.CreatedAt = parsed
	return &contract, nil
}
