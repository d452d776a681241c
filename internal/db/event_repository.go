package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/leasedesk/internal/models"
)

// ErrInvalidEvent is returned when an event is missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

const (
	defaultEventPage  = 100
	defaultPruneBatch = 1000
)

// EventRepository is the append-only audit log.
type EventRepository struct {
	q querier
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{q: db}
}

// EventFilter selects audit events. Zero-valued fields match everything.
type EventFilter struct {
	Types      []models.EventType
	EntityType models.EntityType
	EntityID   string
	ActorID    string
	// Since is inclusive, Until exclusive.
	Since time.Time
	Until time.Time
	// After resumes a listing after the event with this ID.
	After string
	Limit int
}

// EventPage is one page of a Query. NextCursor feeds EventFilter.After and
// is empty on the last page.
type EventPage struct {
	Events     []*models.Event
	NextCursor string
}

const eventColumns = `id, timestamp, type, entity_type, entity_id, actor_id, payload_json`

// Append writes event, assigning an ID and timestamp when unset.
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	if event.Type == "" || event.EntityType == "" || event.EntityID == "" {
		return ErrInvalidEvent
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Timestamp = event.Timestamp.UTC()

	var payload any
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, formatTime(event.Timestamp), string(event.Type), string(event.EntityType),
		event.EntityID, emptyToNull(event.ActorID), payload,
	); err != nil {
		return fmt.Errorf("append event %s: %w", event.Type, err)
	}
	return nil
}

// Query lists events matching f, oldest first.
func (r *EventRepository) Query(ctx context.Context, f EventFilter) (*EventPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultEventPage
	}

	var w where
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		args := make([]any, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args[i] = string(t)
		}
		w.add("type IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if f.EntityType != "" {
		w.add("entity_type = ?", string(f.EntityType))
	}
	if f.EntityID != "" {
		w.add("entity_id = ?", f.EntityID)
	}
	if f.ActorID != "" {
		w.add("actor_id = ?", f.ActorID)
	}
	if !f.Since.IsZero() {
		w.add("timestamp >= ?", formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		w.add("timestamp < ?", formatTime(f.Until))
	}
	if f.After != "" {
		w.add("(timestamp, id) > (SELECT timestamp, id FROM events WHERE id = ?)", f.After)
	}

	args := append(w.args, limit+1)
	events, err := r.list(ctx,
		`SELECT `+eventColumns+` FROM events`+w.sql()+` ORDER BY timestamp, id LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}

	page := &EventPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.NextCursor = events[limit-1].ID
	}
	return page, nil
}

// ForEntity returns every event recorded against one entity, oldest first.
func (r *EventRepository) ForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp, id`, string(entityType), entityID)
}

// RequestHistory returns the events of a rental request together with
// those of its approval tasks and its contract, oldest first.
func (r *EventRepository) RequestHistory(ctx context.Context, requestID string) ([]*models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events
		WHERE (entity_type = ? AND entity_id = ?)
		   OR (entity_type = ? AND entity_id IN (SELECT id FROM request_approvals WHERE request_id = ?))
		   OR (entity_type = ? AND entity_id IN (SELECT id FROM contracts WHERE request_id = ?))
		ORDER BY timestamp, id`,
		string(models.EntityTypeRequest), requestID,
		string(models.EntityTypeApproval), requestID,
		string(models.EntityTypeContract), requestID,
	)
}

// Count returns the number of stored events.
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Prune deletes at most batch events older than before, oldest first, and
// reports how many went.
func (r *EventRepository) Prune(ctx context.Context, before time.Time, batch int) (int64, error) {
	if batch <= 0 {
		batch = defaultPruneBatch
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM events WHERE id IN (
		SELECT id FROM events WHERE timestamp < ? ORDER BY timestamp LIMIT ?)`,
		formatTime(before), batch)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func (r *EventRepository) list(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		event                     models.Event
		ts, eventType, entityType string
		actorID, payload          sql.NullString
	)
	if err := row.Scan(&event.ID, &ts, &eventType, &entityType, &event.EntityID, &actorID, &payload); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	parsed, err := parseTime(ts)
	if err != nil {
		return nil, fmt.Errorf("event %s timestamp: %w", event.ID, err)
	}
	event.Timestamp = parsed
	event.Type = models.EventType(eventType)
	event.EntityType = models.EntityType(entityType)
	event.ActorID = actorID.String
	if payload.Valid {
		event.Payload = json.RawMessage(payload.String)
	}
	return &event, nil
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
