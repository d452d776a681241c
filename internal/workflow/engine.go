// Package workflow runs the approval chain: submitting a rental request,
// resolving signer tasks, materializing contracts and notifying residents.
//
// Every operation is one retried transaction. Notifications and audit events
// are written inside it and events are published only after commit.
package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Engine executes workflow operations against a Store.
type Engine struct {
	store        *db.Store
	publisher    events.Publisher
	cancelOnVeto bool
	logger       zerolog.Logger
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher publishes committed workflow events.
func WithPublisher(pub events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = pub
	}
}

// WithCancelOnVeto cancels the remaining pending tasks when a request is
// declined.
func WithCancelOnVeto(enabled bool) Option {
	return func(e *Engine) {
		e.cancelOnVeto = enabled
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for action timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine.
func NewEngine(store *db.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logging.Component("workflow"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run executes fn in a retried transaction and publishes what it recorded
// once the transaction commits.
func (e *Engine) run(ctx context.Context, fn func(tx *db.Store, rec *events.Recorder) error) error {
	var rec events.Recorder
	err := e.store.InTx(ctx, func(tx *db.Store) error {
		rec.Reset()
		return fn(tx, &rec)
	})
	if err != nil {
		return err
	}
	rec.Flush(ctx, e.publisher)
	return nil
}

// notify appends a notification for userID.
func notify(ctx context.Context, tx *db.Store, userID, title, message string) error {
	return tx.Notifications.Create(ctx, &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
	})
}
