package kafka

import "github.com/vladislavdragonenkov/foodorder/internal/domain"

// Topics для событий сервиса заказов.
const (
	TopicOrderEvents     = "food.order.events"
	TopicCustomerEvents  = "food.customer.events"
	TopicDeadLetterQueue = "food.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
	// HeaderReplayedFrom ставится на сообщения, повторно отправленные из DLQ.
	HeaderReplayedFrom = "x-replayed-from"
)

// TopicFor выбирает topic по типу агрегата.
func TopicFor(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateCustomer:
		return TopicCustomerEvents
	default:
		return TopicOrderEvents
	}
}
