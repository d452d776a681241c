package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/db"
)

// eventPruner periodically deletes audit events older than maxAge.
type eventPruner struct {
	events    *db.EventRepository
	logger    zerolog.Logger
	maxAge    time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// run prunes once immediately, then every interval until ctx is done.
func (p *eventPruner) run(ctx context.Context) {
	for {
		if _, err := p.prune(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("event pruning failed")
		}
		if !sleepUntil(ctx, p.interval) {
			return
		}
	}
}

// prune deletes expired events in batches and returns how many were removed.
func (p *eventPruner) prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	batch := p.batchSize
	if batch <= 0 {
		batch = 1000
	}
	var total int64
	for {
		deleted, err := p.events.Prune(ctx, cutoff, batch)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < int64(batch) || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		p.logger.Info().Int64("deleted", total).Time("cutoff", cutoff).Msg("pruned audit events")
	}
	return total, nil
}

func sleepUntil(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
