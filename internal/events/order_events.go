package events

import (
	"time"

	"github.com/google/uuid"

	"webshop/internal/order"
)

const (
	orderCreatedEventName    = "OrderCreated"
	orderCreatedEventVersion = 1
	orderCreatedSchema       = "contracts/events/order/OrderCreated.v1.payload.schema.json"

	orderCancelledEventName    = "OrderCancelled"
	orderCancelledEventVersion = 1
	orderCancelledSchema       = "contracts/events/order/OrderCancelled.v1.payload.schema.json"
)

type OrderLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderCreatedPayload represents the v1 payload schema.
type OrderCreatedPayload struct {
	OrderID    string      `json:"orderId"`
	UserID     string      `json:"userId"`
	Items      []OrderLine `json:"items"`
	TotalPrice float64     `json:"totalPrice"`
	Timestamp  time.Time   `json:"timestamp"`
}

// OrderCancelledPayload represents the v1 payload schema. Items are included
// so downstream consumers can see which stock came back.
type OrderCancelledPayload struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Items     []OrderLine `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderCreatedEnvelope = EventEnvelope[OrderCreatedPayload]
type OrderCancelledEnvelope = EventEnvelope[OrderCancelledPayload]

// BuildOrderCreatedEnvelope builds an enveloped OrderCreated event.
func BuildOrderCreatedEnvelope(o *order.Order, seq int64, meta EnvelopeMetadata, producer string) OrderCreatedEnvelope {
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}

	return OrderCreatedEnvelope{
		EventName:     orderCreatedEventName,
		EventVersion:  orderCreatedEventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  o.ID,
		Sequence:      &seq,
		OccurredAt:    time.Now().UTC(),
		Schema:        orderCreatedSchema,
		Payload: OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Items:      toLines(o.Items),
			TotalPrice: o.TotalPrice,
			Timestamp:  time.Now().UTC(),
		},
	}
}

// BuildOrderCancelledEnvelope builds an enveloped OrderCancelled event.
func BuildOrderCancelledEnvelope(o *order.Order, seq int64, meta EnvelopeMetadata, producer string) OrderCancelledEnvelope {
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}

	return OrderCancelledEnvelope{
		EventName:     orderCancelledEventName,
		EventVersion:  orderCancelledEventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  o.ID,
		Sequence:      &seq,
		OccurredAt:    time.Now().UTC(),
		Schema:        orderCancelledSchema,
		Payload: OrderCancelledPayload{
			OrderID:   o.ID,
			UserID:    o.UserID,
			Items:     toLines(o.Items),
			Timestamp: time.Now().UTC(),
		},
	}
}

func toLines(items []order.Item) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return lines
}
