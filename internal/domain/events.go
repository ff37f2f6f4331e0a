package domain

import (
	"encoding/json"
	"time"
)

// Агрегаты outbox-событий.
const (
	AggregateOrder    = "order"
	AggregateCustomer = "customer"
)

// Типы outbox-событий.
const (
	EventOrderPlaced          = "order.placed"
	EventOrderCancelled       = "order.cancelled"
	EventOrderPlacementFailed = "order.placement_failed"
	EventCustomerRegistered   = "customer.registered"
)

// OrderEventPayload: тело событий заказа.
type OrderEventPayload struct {
	OrderID    int64     `json:"order_id,omitempty"`
	CustomerID int64     `json:"customer_id"`
	DishID     int64     `json:"dish_id"`
	Quantity   int32     `json:"quantity"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CustomerEventPayload: тело событий клиента. Контактные данные в событие не попадают.
type CustomerEventPayload struct {
	CustomerID int64     `json:"customer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DeadLetterPayload содержит исходное событие и причину отказа для сообщения в DLQ.
type DeadLetterPayload struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}
