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

// UserRepository handles user and role persistence.
type UserRepository struct {
	q querier
}

const userColumns = `id, name, email, password_hash, must_change_password, region_id, created_at`

// Create adds a user together with its role set.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	if err := user.Validate(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		boolToInt(user.MustChangePassword),
		nullableString(user.RegionID),
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflict("user with email %s already exists", user.Email)
		}
		if isForeignKeyError(err) && user.RegionID != nil {
			return models.NewNotFound("region", *user.RegionID)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, role := range user.Roles.Slice() {
		if err := r.AddRole(ctx, user.ID, role); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("user", email)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns all users ordered by email.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	rows.Close()

	for _, user := range users {
		if err := r.loadRoles(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// AddRole grants role to the user. Granting a held role is a no-op.
func (r *UserRepository) AddRole(ctx context.Context, userID string, role models.Role) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		ON CONFLICT (user_id, role) DO NOTHING
	`, userID, string(role))
	if err != nil {
		if isForeignKeyError(err) {
			return models.NewNotFound("user", userID)
		}
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

// SetPassword replaces the password hash and clears the must-change flag.
func (r *UserRepository) SetPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, must_change_password = 0 WHERE id = ?
	`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("user", userID)
	}
	return nil
}

func (r *UserRepository) loadRoles(ctx context.Context, user *models.User) error {
	rows, err := r.q.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, user.ID)
	if err != nil {
		return fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	user.Roles = models.NewRoleSet()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return fmt.Errorf("failed to scan role: %w", err)
		}
		user.Roles.Add(models.Role(role))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating roles: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var mustChange int
	var regionID sql.NullString
	var createdAt string
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&mustChange,
		&regionID,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.MustChangePassword = mustChange != 0
	if regionID.Valid {
		id := regionID.String
		user.RegionID = &id
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	user.CreatedAt = parsed
	return &user, nil
}
