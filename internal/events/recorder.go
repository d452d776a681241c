package events

import (
	"context"

	"github.com/tOgg1/leasedesk/internal/models"
)

// EventWriter persists an event, typically on a transaction-bound repository.
type EventWriter interface {
	Append(ctx context.Context, event *models.Event) error
}

// Recorder collects events written inside a transaction so they can be
// published once the transaction commits. A Recorder is not safe for
// concurrent use.
type Recorder struct {
	events []*models.Event
}

// Record persists event through w and buffers it for Flush.
func (r *Recorder) Record(ctx context.Context, w EventWriter, event *models.Event) error {
	if err := w.Append(ctx, event); err != nil {
		return err
	}
	r.events = append(r.events, event)
	return nil
}

// Reset drops buffered events. Call it at the start of each transaction
// attempt so retried attempts do not publish twice.
func (r *Recorder) Reset() {
	r.events = r.events[:0]
}

// Events returns the buffered events.
func (r *Recorder) Events() []*models.Event {
	return r.events
}

// Flush publishes buffered events in order and clears the buffer. A nil
// publisher only clears.
func (r *Recorder) Flush(ctx context.Context, pub Publisher) {
	if pub != nil && len(r.events) > 0 {
		pub.Publish(ctx, r.events...)
	}
	r.events = nil
}
