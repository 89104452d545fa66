package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func startConsumer(t *testing.T, bus *MemoryBus, sub Subscription, h Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Consume(ctx, sub, h)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	// Consume registers before blocking; wait until the subscription is visible.
	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.Lock()
		registered := len(bus.subs) > 0
		bus.mu.Unlock()
		if registered {
			return cancel
		}
		if time.Now().After(deadline) {
			t.Fatal("Consumer never registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMemoryBus_DeliversToMatchingSubscription(t *testing.T) {
	bus := NewMemoryBus()

	var received []Envelope
	startConsumer(t, bus, Subscription{Queue: "payment_queue", Patterns: []string{"order.created"}},
		func(ctx context.Context, env Envelope) error {
			received = append(received, env)
			return nil
		})

	payload := map[string]int{"order_id": 7}
	if err := bus.Publish(context.Background(), "order.created", payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(context.Background(), "order.cancelled", payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(received))
	}
	if received[0].Event != "order.created" {
		t.Fatalf("Expected event order.created, got %s", received[0].Event)
	}

	var decoded map[string]int
	if err := json.Unmarshal(received[0].Data, &decoded); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if decoded["order_id"] != 7 {
		t.Fatalf("Expected order_id 7, got %d", decoded["order_id"])
	}
}

func TestMemoryBus_WildcardFanIn(t *testing.T) {
	bus := NewMemoryBus()

	var events []string
	startConsumer(t, bus, Subscription{
		Queue:    "notification_queue",
		Patterns: []string{"order.*", "payment.*", "shipment.*"},
	}, func(ctx context.Context, env Envelope) error {
		events = append(events, env.Event)
		return nil
	})

	for _, key := range []string{"order.created", "payment.completed", "shipment.created", "inventory.reserved"} {
		bus.Publish(context.Background(), key, struct{}{})
	}

	want := []string{"order.created", "payment.completed", "shipment.created"}
	if len(events) != len(want) {
		t.Fatalf("Expected %d deliveries, got %d: %v", len(want), len(events), events)
	}
	for i, key := range want {
		if events[i] != key {
			t.Errorf("Delivery %d: expected %s, got %s", i, key, events[i])
		}
	}
}

func TestMemoryBus_HandlerErrorDropsMessage(t *testing.T) {
	bus := NewMemoryBus()

	deliveries := 0
	startConsumer(t, bus, Subscription{Queue: "payment_queue", Patterns: []string{"order.created"}},
		func(ctx context.Context, env Envelope) error {
			deliveries++
			return errors.New("boom")
		})

	if err := bus.Publish(context.Background(), "order.created", struct{}{}); err != nil {
		t.Fatalf("Publish must not surface handler errors, got %v", err)
	}
	if deliveries != 1 {
		t.Fatalf("Expected exactly one delivery, got %d", deliveries)
	}
}

func TestMemoryBus_RecordsPublished(t *testing.T) {
	bus := NewMemoryBus()

	bus.Publish(context.Background(), "order.created", map[string]int{"order_id": 1})
	bus.Publish(context.Background(), "payment.completed", map[string]int{"order_id": 1})
	bus.Publish(context.Background(), "order.created", map[string]int{"order_id": 2})

	if got := len(bus.Published()); got != 3 {
		t.Fatalf("Expected 3 published envelopes, got %d", got)
	}
	if got := len(bus.PublishedOf("order.created")); got != 2 {
		t.Fatalf("Expected 2 order.created envelopes, got %d", got)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	for _, valid := range []string{"drop", "deadletter", "requeue"} {
		if _, err := ParseFailurePolicy(valid); err != nil {
			t.Errorf("ParseFailurePolicy(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseFailurePolicy("explode"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}
