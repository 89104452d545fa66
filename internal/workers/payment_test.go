package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

func TestPaymentWorker_SettlesQueuedPayment(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	payments := newFakePaymentStore()
	orders := newFakeStatusUpdater()
	worker := NewPaymentWorker(bus, payments, orders, time.Millisecond, zaptest.NewLogger(t))

	env := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{
		OrderID:    42,
		CustomerID: 7,
		ProductID:  10,
		Quantity:   2,
		TotalPrice: 1999.98,
	})
	if err := worker.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	payment := payments.payments[42]
	if payment == nil {
		t.Fatal("Expected payment recorded for order 42")
	}
	if payment.Status != "completed" || payment.PaymentMethod != "credit_card" {
		t.Errorf("Unexpected payment %+v", payment)
	}
	if payment.Amount != 1999.98 {
		t.Errorf("Expected amount 1999.98, got %f", payment.Amount)
	}
	if !strings.HasPrefix(payment.TransactionID, "TXN-42-") {
		t.Errorf("Unexpected transaction id %q", payment.TransactionID)
	}
	if orders.paymentStatuses[42] != models.PaymentStatusCompleted {
		t.Errorf("Expected order payment status pushed back, got %v", orders.paymentStatuses)
	}

	published := bus.PublishedOf(models.EventPaymentCompleted)
	if len(published) != 1 {
		t.Fatalf("Expected 1 payment.completed event, got %d", len(published))
	}
	var completed models.PaymentCompletedEvent
	if err := json.Unmarshal(published[0].Data, &completed); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if completed.OrderID != 42 || completed.CustomerID != 7 || completed.Amount != 1999.98 || completed.PaymentID != payment.ID {
		t.Errorf("Unexpected payment.completed payload %+v", completed)
	}
}

func TestPaymentWorker_DuplicateDeliveryIsIdempotent(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	payments := newFakePaymentStore()
	orders := newFakeStatusUpdater()
	worker := NewPaymentWorker(bus, payments, orders, time.Millisecond, zaptest.NewLogger(t))

	env := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{
		OrderID: 42, CustomerID: 7, ProductID: 10, Quantity: 2, TotalPrice: 1999.98,
	})
	for i := 0; i < 2; i++ {
		if err := worker.HandleMessage(context.Background(), env); err != nil {
			t.Fatalf("Delivery %d failed: %v", i+1, err)
		}
	}

	if payments.nextID != 2 {
		t.Fatalf("Expected a single payment insert, got %d", payments.nextID-1)
	}

	// The chain still re-publishes so a lost downstream message converges.
	published := bus.PublishedOf(models.EventPaymentCompleted)
	if len(published) != 2 {
		t.Fatalf("Expected 2 payment.completed events, got %d", len(published))
	}
	var first, second models.PaymentCompletedEvent
	json.Unmarshal(published[0].Data, &first)
	json.Unmarshal(published[1].Data, &second)
	if first.PaymentID != second.PaymentID {
		t.Errorf("Redelivery must reuse the settled payment id: %d vs %d", first.PaymentID, second.PaymentID)
	}
}

func TestPaymentWorker_StatusPushFailureDoesNotFailMessage(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	payments := newFakePaymentStore()
	orders := newFakeStatusUpdater()
	orders.err = errors.New("order service unavailable")
	worker := NewPaymentWorker(bus, payments, orders, time.Millisecond, zaptest.NewLogger(t))

	env := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{
		OrderID: 42, CustomerID: 7, TotalPrice: 50,
	})
	if err := worker.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("Status push failure must be swallowed, got %v", err)
	}
	if payments.payments[42] == nil {
		t.Fatal("Expected payment recorded despite status push failure")
	}
	if got := len(bus.PublishedOf(models.EventPaymentCompleted)); got != 1 {
		t.Fatalf("Expected payment.completed still published, got %d", got)
	}
}

func TestPaymentWorker_LookupFailureReturnsError(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	payments := newFakePaymentStore()
	payments.findErr = errors.New("db down")
	worker := NewPaymentWorker(bus, payments, newFakeStatusUpdater(), time.Millisecond, zaptest.NewLogger(t))

	env := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{OrderID: 42})
	if err := worker.HandleMessage(context.Background(), env); err == nil {
		t.Fatal("Expected error when the payment lookup fails")
	}
	if got := len(bus.PublishedOf(models.EventPaymentCompleted)); got != 0 {
		t.Fatalf("Expected no event published, got %d", got)
	}
}

func TestPaymentWorker_MalformedPayload(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	worker := NewPaymentWorker(bus, newFakePaymentStore(), newFakeStatusUpdater(), time.Millisecond, zaptest.NewLogger(t))

	env := eventbus.Envelope{Event: models.EventOrderCreated, Data: json.RawMessage(`"not an object"`)}
	if err := worker.HandleMessage(context.Background(), env); err == nil {
		t.Fatal("Expected error for malformed payload")
	}
}
