package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/testutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// syncBuffer lets the test read while the streamer goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func recordEvent(t *testing.T, store *db.Store, eventType models.EventType, entityType models.EntityType, entityID string) *models.Event {
	t.Helper()
	event := models.NewEvent(eventType, entityType, entityID, "actor-1", nil)
	if err := store.Events.Append(context.Background(), event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func decodeLines(t *testing.T, out string) []models.Event {
	t.Helper()
	var events []models.Event
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var event models.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestEventStreamer_WriteEvent(t *testing.T) {
	store := testutil.OpenStore(t)

	var buf bytes.Buffer
	streamer := NewEventStreamer(store.Events, &buf, StreamOptions{})

	event := models.NewEvent(models.EventTypeRequestSubmitted, models.EntityTypeRequest, "request-1", "user-1", nil)
	event.ID = "test-event-1"
	if err := streamer.writeEvent(event); err != nil {
		t.Fatalf("writeEvent failed: %v", err)
	}

	events := decodeLines(t, buf.String())
	if len(events) != 1 || events[0].ID != event.ID || events[0].Type != event.Type {
		t.Fatalf("decoded %+v", events)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output should end with newline (JSONL format)")
	}
}

func TestEventStreamer_DrainFiltersAndPages(t *testing.T) {
	store := testutil.OpenStore(t)
	for i := 0; i < 5; i++ {
		recordEvent(t, store, models.EventTypeApprovalApproved, models.EntityTypeApproval, "task")
	}
	recordEvent(t, store, models.EventTypeRequestApproved, models.EntityTypeRequest, "request-1")
	recordEvent(t, store, models.EventTypeContractCreated, models.EntityTypeContract, "contract-1")

	var buf bytes.Buffer
	streamer := NewEventStreamer(store.Events, &buf, StreamOptions{})
	filter := db.EventFilter{
		Types: []models.EventType{models.EventTypeRequestApproved, models.EventTypeContractCreated},
		Limit: 1,
	}

	written, err := streamer.drain(context.Background(), &filter)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if written != 2 || filter.After == "" {
		t.Fatalf("written = %d after = %q", written, filter.After)
	}

	events := decodeLines(t, buf.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	seen := map[models.EventType]bool{events[0].Type: true, events[1].Type: true}
	if !seen[models.EventTypeRequestApproved] || !seen[models.EventTypeContractCreated] {
		t.Fatalf("unexpected types: %s, %s", events[0].Type, events[1].Type)
	}

	// Nothing new: the position holds and nothing is rewritten.
	buf.Reset()
	after := filter.After
	written, err = streamer.drain(context.Background(), &filter)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if written != 0 || filter.After != after || buf.Len() != 0 {
		t.Fatalf("second drain wrote %d (%q), moved %q -> %q", written, buf.String(), after, filter.After)
	}
}

func TestEventStreamer_StreamsOnlyNewEvents(t *testing.T) {
	store := testutil.OpenStore(t)
	recordEvent(t, store, models.EventTypeRequestSubmitted, models.EntityTypeRequest, "old")

	out := &syncBuffer{}
	streamer := NewEventStreamer(store.Events, out, StreamOptions{
		Filter:   db.EventFilter{EntityType: models.EntityTypeRequest},
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- streamer.Stream(ctx) }()

	time.Sleep(30 * time.Millisecond)
	recordEvent(t, store, models.EventTypeSignerCreated, models.EntityTypeSigner, "ignored")
	recordEvent(t, store, models.EventTypeRequestApproved, models.EntityTypeRequest, "new")

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), `"entity_id":"new"`) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Stream returned %v", err)
	}

	events := decodeLines(t, out.String())
	if len(events) != 1 || events[0].EntityID != "new" {
		t.Fatalf("streamed %+v, want only the new request event", events)
	}
}

func TestEventStreamer_BackfillFromSince(t *testing.T) {
	store := testutil.OpenStore(t)
	recordEvent(t, store, models.EventTypeRequestSubmitted, models.EntityTypeRequest, "existing")

	out := &syncBuffer{}
	streamer := NewEventStreamer(store.Events, out, StreamOptions{
		Filter:   db.EventFilter{Since: time.Now().Add(-time.Hour)},
		Interval: 10 * time.Millisecond,
		Backfill: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- streamer.Stream(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), `"entity_id":"existing"`) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if events := decodeLines(t, out.String()); len(events) != 1 {
		t.Fatalf("backfill wrote %+v", events)
	}
}

func TestWriteOutputJSONL(t *testing.T) {
	jsonlOutput = true
	t.Cleanup(func() { jsonlOutput = false })

	var buf bytes.Buffer
	if err := WriteOutput(&buf, []*models.Region{{ID: "r1", Name: "North"}, {ID: "r2", Name: "South"}}); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"South"`) {
		t.Fatalf("lines = %q", lines)
	}
}

func TestWriteTableAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTable(&buf, []string{"NAME", "CITY"}, [][]string{{"東京タワー", "Tokyo"}, {"Oslo Hus", "Oslo"}}); err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	// 東京タワー is 10 columns wide.
	if !strings.HasPrefix(lines[2], "Oslo Hus    Oslo") {
		t.Fatalf("row not aligned to wide column: %q", lines[2])
	}
}

func TestWriteTableRightAlignsNumbersAndTruncates(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 60)
	err := writeTable(&buf, []string{"NAME", "PRICE"}, [][]string{{"Tower A", "1500.00"}, {long, "25.50"}, {"Depot", "-"}})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasSuffix(lines[2], "   25.50") || !strings.HasSuffix(lines[3], "      -") {
		t.Fatalf("numeric column not right-aligned: %q", lines)
	}
	if strings.Contains(lines[2], long) || !strings.Contains(lines[2], "…") {
		t.Fatalf("long cell not truncated: %q", lines[2])
	}
}
