package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusActive: заказ принят и ещё может быть отменён в пределах окна отмены.
	OrderStatusActive OrderStatus = "active"
	// OrderStatusCancelled: заказ отменён, переход необратим.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusActive, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order хранит состояние заказа. Блюдо и клиент хранятся ссылками.
type Order struct {
	ID         int64
	DishID     int64
	CustomerID int64
	Quantity   int32
	Status     OrderStatus
	// PlacedAt выставляется один раз при создании и больше не меняется.
	PlacedAt  time.Time
	Version   int64
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.DishID <= 0 {
		errs = append(errs, ErrDishIDRequired)
	}
	if o.CustomerID <= 0 {
		errs = append(errs, ErrCustomerIDRequired)
	}
	if o.Quantity <= 0 {
		errs = append(errs, ErrQuantityInvalid)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if o.PlacedAt.IsZero() {
		errs = append(errs, ErrPlacedAtRequired)
	}

	return errs
}

// Cancel переводит активный заказ в статус cancelled.
// Окно отмены проверяется вызывающей стороной через CancellationAllowed.
func (o *Order) Cancel(now time.Time) error {
	if o.Status == OrderStatusCancelled {
		return ErrOrderAlreadyCancelled
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = now
	return nil
}

// OrderSummary: проекция заказа для ответов list/detail.
type OrderSummary struct {
	OrderID    int64
	CustomerID int64
	DishID     int64
	Quantity   int32
	Status     OrderStatus
	PlacedAt   time.Time
}

// Summary строит проекцию заказа.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		DishID:     o.DishID,
		Quantity:   o.Quantity,
		Status:     o.Status,
		PlacedAt:   o.PlacedAt,
	}
}
