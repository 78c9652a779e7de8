package events

import (
	"context"
	"fmt"
	"time"
)

// EventEnvelope wraps every message published to the webshop.events exchange.
// The payload is a type parameter so each event keeps a typed body while the
// envelope fields stay uniform across event kinds.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      *int64    `json:"sequence,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// EnvelopeMetadata is the tracing context stamped onto outgoing events.
// CorrelationID ties together everything that happened on behalf of one
// request; CausationID names the immediate trigger, which for events emitted
// from the HTTP layer is the request id.
type EnvelopeMetadata struct {
	CorrelationID string
	CausationID   string
}

type metadataKey struct{}

// WithMetadata attaches tracing metadata to the context so it survives the
// trip from the HTTP layer through the order service to the publisher.
func WithMetadata(ctx context.Context, meta EnvelopeMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, meta)
}

// MetadataFromContext returns the tracing metadata carried by ctx. Events not
// triggered by a request get the zero value and the envelope builders mint a
// fresh correlation id.
func MetadataFromContext(ctx context.Context) EnvelopeMetadata {
	meta, _ := ctx.Value(metadataKey{}).(EnvelopeMetadata)
	return meta
}

// Validate checks that the envelope identifies the expected event and carries
// a partition key.
func (e EventEnvelope[T]) Validate(name string, version int) error {
	if e.EventName != name {
		return fmt.Errorf("eventName is %q, want %q", e.EventName, name)
	}
	if e.EventVersion != version {
		return fmt.Errorf("eventVersion is %d, want %d", e.EventVersion, version)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("empty partitionKey")
	}
	return nil
}
