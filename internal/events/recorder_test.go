package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/models"
)

type memoryWriter struct {
	events []*models.Event
	err    error
}

func (w *memoryWriter) Append(ctx context.Context, event *models.Event) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, event)
	return nil
}

func TestRecorder_FlushPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	writer := &memoryWriter{}
	pub := NewBus(zerolog.Nop())

	var seen []string
	pub.Subscribe("all", Filter{}, func(ctx context.Context, event *models.Event) {
		seen = append(seen, event.ID)
	})

	var rec Recorder
	for _, id := range []string{"a", "b"} {
		if err := rec.Record(ctx, writer, approvalEvent(id)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if len(writer.events) != 2 {
		t.Fatalf("writer got %d events, want 2", len(writer.events))
	}
	if len(seen) != 0 {
		t.Fatal("events must not be published before Flush")
	}

	rec.Flush(ctx, pub)
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("published %v, want [a b]", seen)
	}
	if len(rec.Events()) != 0 {
		t.Fatal("Flush should clear the buffer")
	}
}

func TestRecorder_ResetAndWriteError(t *testing.T) {
	ctx := context.Background()
	var rec Recorder

	if err := rec.Record(ctx, &memoryWriter{}, approvalEvent("a")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Fatal("Reset should drop buffered events")
	}

	boom := errors.New("boom")
	if err := rec.Record(ctx, &memoryWriter{err: boom}, approvalEvent("b")); !errors.Is(err, boom) {
		t.Fatalf("Record() error = %v, want %v", err, boom)
	}
	if len(rec.Events()) != 0 {
		t.Fatal("failed writes must not be buffered")
	}

	rec.Flush(ctx, nil)
}
