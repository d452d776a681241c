package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

const (
	defaultWatchInterval = 500 * time.Millisecond
	defaultWatchBatch    = 100
)

// eventSource is the part of the audit log the streamer polls.
type eventSource interface {
	Query(ctx context.Context, f db.EventFilter) (*db.EventPage, error)
}

// StreamOptions configures an EventStreamer.
type StreamOptions struct {
	// Filter selects events. Its After field is managed by the streamer.
	Filter   db.EventFilter
	Interval time.Duration
	// Backfill first writes matching events already in the log, starting at
	// Filter.Since. Without it only events recorded after Stream starts are
	// written.
	Backfill bool
}

// EventStreamer tails the audit log and writes each matching event as one
// JSON line.
type EventStreamer struct {
	src    eventSource
	out    io.Writer
	opts   StreamOptions
	logger zerolog.Logger
	now    func() time.Time
}

// NewEventStreamer creates a streamer over src.
func NewEventStreamer(src eventSource, out io.Writer, opts StreamOptions) *EventStreamer {
	if opts.Interval <= 0 {
		opts.Interval = defaultWatchInterval
	}
	if opts.Filter.Limit <= 0 {
		opts.Filter.Limit = defaultWatchBatch
	}
	return &EventStreamer{
		src:    src,
		out:    out,
		opts:   opts,
		logger: logging.Component("watch"),
		now:    time.Now,
	}
}

// Stream writes events until ctx is cancelled. Cancellation is a clean stop.
func (s *EventStreamer) Stream(ctx context.Context) error {
	filter := s.opts.Filter
	filter.After = ""
	if !s.opts.Backfill {
		filter.Since = s.now()
	}

	s.logger.Debug().Dur("interval", s.opts.Interval).Msg("watching audit log")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.drain(ctx, &filter); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain writes every page available now and moves filter past the last
// event written. It returns how many events were written.
func (s *EventStreamer) drain(ctx context.Context, filter *db.EventFilter) (int, error) {
	written := 0
	for {
		page, err := s.src.Query(ctx, *filter)
		if err != nil {
			return written, fmt.Errorf("poll events: %w", err)
		}
		for _, event := range page.Events {
			if err := s.writeEvent(event); err != nil {
				return written, fmt.Errorf("write event: %w", err)
			}
			written++
			filter.After = event.ID
		}
		if page.NextCursor == "" {
			return written, nil
		}
	}
}

func (s *EventStreamer) writeEvent(event *models.Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.out.Write(append(line, '\n'))
	return err
}

var errWatchNeedsJSONL = errors.New("--watch requires --jsonl output format")

// MustBeJSONLForWatch rejects --watch without --jsonl.
func MustBeJSONLForWatch() error {
	if IsWatchMode() && !IsJSONLOutput() {
		return errWatchNeedsJSONL
	}
	return nil
}
