package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/leasedesk/internal/models"
)

// NotificationRepository handles notification persistence.
type NotificationRepository struct {
	q querier
}

// Create appends a notification.
func (r *NotificationRepository) Create(ctx context.Context, note *models.Notification) error {
	if note.UserID == "" {
		return fmt.Errorf("notification user id is required")
	}
	if strings.TrimSpace(note.Title) == "" {
		return fmt.Errorf("notification title is required")
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, note.ID, note.UserID, note.Title, note.Message, boolToInt(note.IsRead), formatTime(note.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return models.NewNotFound("user", note.UserID)
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first. limit <= 0 means all.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notes []*models.Notification
	for rows.Next() {
		var note models.Notification
		var isRead int
		var createdAt string
		if err := rows.Scan(&note.ID, &note.UserID, &note.Title, &note.Message, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		note.IsRead = isRead != 0
		if note.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notes, nil
}

// MarkRead sets the read flag on a notification owned by userID.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	ok, err := singleRowAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFound("notification", id)
	}
	return nil
}
