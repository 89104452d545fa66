package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the wire format shared by every event on the bus.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Handler func(ctx context.Context, env Envelope) error

// Subscription declares the durable queue a consumer owns and the routing-key
// patterns bound to it ("*" matches one dot-delimited token, "#" the rest).
type Subscription struct {
	Queue    string
	Patterns []string
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Bus adds blocking consumption to Publisher. Consume returns a non-nil error
// on transport failure so the caller can re-establish the subscription; it
// returns nil once ctx is cancelled. Handler errors never end the consume
// loop, they only trigger the bus's failure policy for that message.
type Bus interface {
	Publisher
	Consume(ctx context.Context, sub Subscription, h Handler) error
}

// FailurePolicy decides what happens to a message whose handler failed.
type FailurePolicy string

const (
	// PolicyDrop negatively acknowledges without requeue, losing the message.
	PolicyDrop FailurePolicy = "drop"
	// PolicyDeadLetter routes failed messages to a dead-letter exchange.
	PolicyDeadLetter FailurePolicy = "deadletter"
	// PolicyRequeue puts the message back on the queue for redelivery.
	PolicyRequeue FailurePolicy = "requeue"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case PolicyDrop, PolicyDeadLetter, PolicyRequeue:
		return FailurePolicy(s), nil
	}
	return "", fmt.Errorf("unknown consumer failure policy %q", s)
}

func encodeEnvelope(routingKey string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	body, err := json.Marshal(Envelope{Event: routingKey, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return body, nil
}

func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	return env, nil
}
