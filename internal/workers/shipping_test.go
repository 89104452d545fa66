package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

func newTestShippingWorker(t *testing.T, bus *eventbus.MemoryBus, shipments *fakeShipmentStore, orders *fakeStatusUpdater) *ShippingWorker {
	t.Helper()
	worker := NewShippingWorker(bus, shipments, orders, time.Millisecond, zaptest.NewLogger(t))
	worker.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return worker
}

func TestShippingWorker_CreatesShipment(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	shipments := newFakeShipmentStore()
	orders := newFakeStatusUpdater()
	worker := newTestShippingWorker(t, bus, shipments, orders)

	env := makeEnvelope(t, models.EventPaymentCompleted, models.PaymentCompletedEvent{
		PaymentID:  3,
		OrderID:    42,
		Amount:     1999.98,
		CustomerID: 7,
	})
	if err := worker.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	shipment := shipments.shipments[42]
	if shipment == nil {
		t.Fatal("Expected shipment recorded for order 42")
	}
	wantTracking := fmt.Sprintf("TRACK-42-%d", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Unix())
	if shipment.TrackingNumber != wantTracking {
		t.Errorf("Expected tracking number %s, got %s", wantTracking, shipment.TrackingNumber)
	}
	if shipment.Carrier != "DHL" || shipment.Status != string(models.ShippingStatusShipped) {
		t.Errorf("Unexpected shipment %+v", shipment)
	}
	if orders.shippingStatuses[42] != models.ShippingStatusShipped {
		t.Errorf("Expected shipping status pushed back, got %v", orders.shippingStatuses)
	}

	published := bus.PublishedOf(models.EventShipmentCreated)
	if len(published) != 1 {
		t.Fatalf("Expected 1 shipment.created event, got %d", len(published))
	}
	var created models.ShipmentCreatedEvent
	if err := json.Unmarshal(published[0].Data, &created); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if created.OrderID != 42 || created.CustomerID != 7 || created.TrackingNumber != wantTracking {
		t.Errorf("Unexpected shipment.created payload %+v", created)
	}
}

func TestShippingWorker_DuplicateDeliveryReusesTrackingNumber(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	shipments := newFakeShipmentStore()
	worker := newTestShippingWorker(t, bus, shipments, newFakeStatusUpdater())

	env := makeEnvelope(t, models.EventPaymentCompleted, models.PaymentCompletedEvent{
		PaymentID: 3, OrderID: 42, Amount: 1999.98, CustomerID: 7,
	})
	for i := 0; i < 2; i++ {
		if err := worker.HandleMessage(context.Background(), env); err != nil {
			t.Fatalf("Delivery %d failed: %v", i+1, err)
		}
	}

	if shipments.creates != 1 {
		t.Fatalf("Expected a single shipment insert, got %d", shipments.creates)
	}

	published := bus.PublishedOf(models.EventShipmentCreated)
	if len(published) != 2 {
		t.Fatalf("Expected 2 shipment.created events, got %d", len(published))
	}
	var first, second models.ShipmentCreatedEvent
	json.Unmarshal(published[0].Data, &first)
	json.Unmarshal(published[1].Data, &second)
	if first.TrackingNumber != second.TrackingNumber {
		t.Errorf("Redelivery minted a new tracking number: %s vs %s", first.TrackingNumber, second.TrackingNumber)
	}
	if first.ShipmentID != second.ShipmentID {
		t.Errorf("Redelivery must reuse the shipment id: %d vs %d", first.ShipmentID, second.ShipmentID)
	}
}

func TestShippingWorker_IgnoresOtherEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	shipments := newFakeShipmentStore()
	worker := newTestShippingWorker(t, bus, shipments, newFakeStatusUpdater())

	env := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{OrderID: 42})
	if err := worker.HandleMessage(context.Background(), env); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if shipments.creates != 0 {
		t.Fatalf("Expected no shipment for unrelated event, got %d", shipments.creates)
	}
}

func TestPaymentToShippingChain(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	payments := newFakePaymentStore()
	shipments := newFakeShipmentStore()
	orders := newFakeStatusUpdater()
	paymentWorker := NewPaymentWorker(bus, payments, orders, time.Millisecond, zaptest.NewLogger(t))
	shippingWorker := newTestShippingWorker(t, bus, shipments, orders)

	orderCreated := makeEnvelope(t, models.EventOrderCreated, models.OrderCreatedEvent{
		OrderID: 42, CustomerID: 7, ProductID: 10, Quantity: 2, TotalPrice: 1999.98,
	})
	if err := paymentWorker.HandleMessage(context.Background(), orderCreated); err != nil {
		t.Fatalf("Payment step failed: %v", err)
	}

	completed := bus.PublishedOf(models.EventPaymentCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected 1 payment.completed event, got %d", len(completed))
	}
	if err := shippingWorker.HandleMessage(context.Background(), completed[0]); err != nil {
		t.Fatalf("Shipping step failed: %v", err)
	}

	if shipments.shipments[42] == nil {
		t.Fatal("Expected the chain to produce a shipment")
	}
	if got := len(bus.PublishedOf(models.EventShipmentCreated)); got != 1 {
		t.Fatalf("Expected 1 shipment.created event, got %d", got)
	}
	if orders.paymentStatuses[42] != models.PaymentStatusCompleted || orders.shippingStatuses[42] != models.ShippingStatusShipped {
		t.Errorf("Expected both statuses pushed back, got %v / %v", orders.paymentStatuses, orders.shippingStatuses)
	}
}
