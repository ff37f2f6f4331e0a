package ordering

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// Запись timeline и outbox не влияет на результат операции: ошибки только логируются.

func (o *Orchestrator) recordTimeline(ctx context.Context, orderID int64, eventType, reason string, at time.Time) {
	if o.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: at,
	}
	if err := o.timeline.Append(ctx, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	o.metrics.RecordTimelineEvent()
}

func (o *Orchestrator) emitOrderEvent(ctx context.Context, order domain.Order, eventType, reason string, at time.Time) {
	aggregateID := ""
	if order.ID > 0 {
		aggregateID = strconv.FormatInt(order.ID, 10)
	}
	o.enqueue(ctx, aggregateID, eventType, domain.OrderEventPayload{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		DishID:     order.DishID,
		Quantity:   order.Quantity,
		Status:     string(order.Status),
		Reason:     reason,
		OccurredAt: at,
	})
}

// emitPlacementFailed фиксирует диагностическое событие о неудачном сохранении заказа.
// Повтор оформления не выполняется.
func (o *Orchestrator) emitPlacementFailed(ctx context.Context, order domain.Order, cause error) {
	o.emitOrderEvent(ctx, order, domain.EventOrderPlacementFailed, cause.Error(), o.clock.Now())
}

func (o *Orchestrator) enqueue(ctx context.Context, aggregateID, eventType string, payload domain.OrderEventPayload) {
	if o.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithField("event", eventType).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(ctx, msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
		return
	}
	o.metrics.RecordOutboxEvent(eventType)
}
