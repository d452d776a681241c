package events

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/models"
)

func approvalEvent(id string) *models.Event {
	return &models.Event{
		ID:         id,
		Type:       models.EventTypeApprovalApproved,
		EntityType: models.EntityTypeApproval,
		EntityID:   "task-1",
		ActorID:    "user-1",
	}
}

func contractEvent(id string) *models.Event {
	return &models.Event{
		ID:         id,
		Type:       models.EventTypeContractCreated,
		EntityType: models.EntityTypeContract,
		EntityID:   "contract-1",
		ActorID:    "user-2",
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{"zero filter", Filter{}, approvalEvent("e1"), true},
		{"nil event", Filter{}, nil, false},
		{"type in set", Filter{Types: []models.EventType{models.EventTypeRequestApproved, models.EventTypeApprovalApproved}}, approvalEvent("e1"), true},
		{"type not in set", Filter{Types: []models.EventType{models.EventTypeApprovalDeclined}}, approvalEvent("e1"), false},
		{"entity type", Filter{EntityType: models.EntityTypeContract}, contractEvent("e1"), true},
		{"other entity type", Filter{EntityType: models.EntityTypeContract}, approvalEvent("e1"), false},
		{"entity id", Filter{EntityID: "task-2"}, approvalEvent("e1"), false},
		{"actor", Filter{ActorID: "user-1"}, approvalEvent("e1"), true},
		{"other actor", Filter{ActorID: "user-2"}, approvalEvent("e1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.event); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBusDeliversBatchInOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var all, contracts []string
	bus.Subscribe("all", Filter{}, func(ctx context.Context, event *models.Event) {
		all = append(all, event.ID)
	})
	bus.Subscribe("contracts", Filter{Types: []models.EventType{models.EventTypeContractCreated}}, func(ctx context.Context, event *models.Event) {
		contracts = append(contracts, event.ID)
	})

	bus.Publish(context.Background(), approvalEvent("a"), nil, contractEvent("c"))

	if strings.Join(all, ",") != "a,c" {
		t.Fatalf("all = %v", all)
	}
	if strings.Join(contracts, ",") != "c" {
		t.Fatalf("contracts = %v", contracts)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	cancel := bus.Subscribe("counter", Filter{}, func(ctx context.Context, event *models.Event) { calls++ })
	if bus.Len() != 1 {
		t.Fatalf("Len() = %d", bus.Len())
	}

	bus.Publish(context.Background(), approvalEvent("e1"))
	cancel()
	cancel()
	bus.Publish(context.Background(), approvalEvent("e2"))

	if calls != 1 || bus.Len() != 0 {
		t.Fatalf("calls = %d, Len() = %d", calls, bus.Len())
	}
}

func TestBusHandlerMayUnsubscribeItself(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	var cancel func()
	cancel = bus.Subscribe("once", Filter{}, func(ctx context.Context, event *models.Event) {
		calls++
		cancel()
	})

	bus.Publish(context.Background(), approvalEvent("e1"), approvalEvent("e2"))

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	var logs bytes.Buffer
	bus := NewBus(zerolog.New(&logs))

	reached := false
	bus.Subscribe("broken", Filter{}, func(ctx context.Context, event *models.Event) { panic("boom") })
	bus.Subscribe("after", Filter{}, func(ctx context.Context, event *models.Event) { reached = true })

	bus.Publish(context.Background(), approvalEvent("e1"))

	if !reached {
		t.Fatal("handler after the panicking one did not run")
	}
	if !strings.Contains(logs.String(), `"subscriber":"broken"`) || !strings.Contains(logs.String(), "boom") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Subscribe("a", Filter{}, func(ctx context.Context, event *models.Event) {})
	bus.Subscribe("b", Filter{}, func(ctx context.Context, event *models.Event) {})

	bus.Close()

	if bus.Len() != 0 {
		t.Fatalf("Len() after Close = %d", bus.Len())
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var count int64
	for i := 0; i < 10; i++ {
		bus.Subscribe("counter", Filter{}, func(ctx context.Context, event *models.Event) {
			atomic.AddInt64(&count, 1)
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), approvalEvent("e"))
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&count); got != 1000 {
		t.Fatalf("count = %d, want 1000", got)
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	LogHandler(zerolog.New(&buf))(context.Background(), approvalEvent("event-42"))

	out := buf.String()
	for _, want := range []string{`"event_id":"event-42"`, `"type":"approval.approved"`, `"actor_id":"user-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}
