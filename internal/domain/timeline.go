package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	TimelineOrderPlaced    = "OrderPlaced"
	TimelineOrderCancelled = "OrderCancelled"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}
