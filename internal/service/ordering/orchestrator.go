// Package ordering содержит оркестратор заказов: оформление с проверкой блюда и клиента
// в удалённых сервисах, отмену в пределах окна и выборку заказов клиента.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
)

const (
	maxSaveAttempts = 3
	baseRetryDelay  = 10 * time.Millisecond
)

// Причины отказа, используемые в метриках.
const (
	reasonInvalidInput        = "invalid_input"
	reasonDishNotFound        = "dish_not_found"
	reasonDishUnavailable     = "dish_unavailable"
	reasonCustomerNotFound    = "customer_not_found"
	reasonCustomerUnavailable = "customer_unavailable"
	reasonPersistence         = "persistence"
	reasonWindowExpired       = "window_expired"
	reasonVersionConflict     = "version_conflict"
	reasonOrderNotFound       = "order_not_found"
)

// PlaceOrderRequest: параметры оформления заказа.
type PlaceOrderRequest struct {
	DishID     int64
	CustomerID int64
	Quantity   int32
}

// CancelResult: итог отмены. Transitioned=false означает, что заказ уже был отменён раньше.
type CancelResult struct {
	Order        domain.OrderSummary
	Transitioned bool
}

// OrderDetails: заказ вместе с историей событий.
type OrderDetails struct {
	Order    domain.OrderSummary
	Timeline []domain.TimelineEvent
}

// Orchestrator управляет жизненным циклом заказа Active → Cancelled.
// Собственного изменяемого состояния между запросами нет: всё хранится в OrderRepository.
type Orchestrator struct {
	orders    domain.OrderRepository
	dishes    domain.DishCatalog
	customers domain.CustomerRegistry
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	clock     clock.Clock
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithTimeline включает запись timeline.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(o *Orchestrator) { o.timeline = timeline }
}

// WithOutbox включает постановку событий в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Orchestrator) { o.outbox = outbox }
}

// WithClock подменяет часы (в тестах окна отмены).
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator создаёт оркестратор заказов.
func NewOrchestrator(
	orders domain.OrderRepository,
	dishes domain.DishCatalog,
	customers domain.CustomerRegistry,
	logger *log.Entry,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "ordering")
	}
	o := &Orchestrator{
		orders:    orders,
		dishes:    dishes,
		customers: customers,
		clock:     clock.NewSystem(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PlaceOrder проверяет блюдо, затем клиента и создаёт заказ в статусе Active.
// Клиент не запрашивается, если проверка блюда не прошла.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	defer o.metrics.TrackOperation("place_order")()

	logger := o.logger.WithFields(log.Fields{
		"dish_id":     req.DishID,
		"customer_id": req.CustomerID,
		"quantity":    req.Quantity,
	})

	if errs := validatePlacement(req); len(errs) > 0 {
		o.metrics.RecordPlacementFailure(reasonInvalidInput)
		return domain.Order{}, domain.InvalidInput(errs...)
	}

	if err := o.checkDish(ctx, req.DishID); err != nil {
		logger.WithError(err).WithField("transient", domain.IsTransient(err)).Info("order rejected: dish check failed")
		return domain.Order{}, err
	}
	if err := o.checkCustomer(ctx, req.CustomerID); err != nil {
		logger.WithError(err).WithField("transient", domain.IsTransient(err)).Info("order rejected: customer check failed")
		return domain.Order{}, err
	}

	now := o.clock.Now()
	order := domain.Order{
		DishID:     req.DishID,
		CustomerID: req.CustomerID,
		Quantity:   req.Quantity,
		Status:     domain.OrderStatusActive,
		PlacedAt:   now,
		UpdatedAt:  now,
	}

	created, err := o.orders.Create(ctx, order)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		// Внешний ключ orders → customers в postgres.
		o.metrics.RecordPlacementFailure(reasonCustomerNotFound)
		return domain.Order{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		o.metrics.RecordPlacementFailure(reasonPersistence)
		logger.WithError(err).Error("persist order failed")
		o.emitPlacementFailed(ctx, order, err)
		return domain.Order{}, domain.Persistence("create order", err)
	}

	o.metrics.RecordOrderPlaced()
	o.recordTimeline(ctx, created.ID, domain.TimelineOrderPlaced, "", created.PlacedAt)
	o.emitOrderEvent(ctx, created, domain.EventOrderPlaced, "", created.PlacedAt)
	logger.WithField("order_id", created.ID).Info("order placed")

	return created, nil
}

func validatePlacement(req PlaceOrderRequest) []error {
	var errs []error
	if req.DishID <= 0 {
		errs = append(errs, domain.ErrDishIDRequired)
	}
	if req.CustomerID <= 0 {
		errs = append(errs, domain.ErrCustomerIDRequired)
	}
	if req.Quantity <= 0 {
		errs = append(errs, domain.ErrQuantityInvalid)
	}
	return errs
}

// checkDish проверяет блюдо в каталоге. Временный сбой наружу выглядит как ErrDishNotFound,
// но остаётся различимым через domain.IsTransient.
func (o *Orchestrator) checkDish(ctx context.Context, dishID int64) error {
	start := time.Now()
	_, err := o.dishes.Dish(ctx, dishID)
	result := lookupResult(err)
	o.metrics.RecordRemoteLookup(metrics.TargetDishCatalog, result, time.Since(start))

	switch result {
	case metrics.ResultFound:
		return nil
	case metrics.ResultNotFound:
		o.metrics.RecordPlacementFailure(reasonDishNotFound)
		return domain.ErrDishNotFound
	default:
		o.metrics.RecordPlacementFailure(reasonDishUnavailable)
		return collapseTransient(domain.ErrDishNotFound, "dish catalog", err)
	}
}

func (o *Orchestrator) checkCustomer(ctx context.Context, customerID int64) error {
	start := time.Now()
	_, err := o.customers.Lookup(ctx, customerID)
	result := lookupResult(err)
	o.metrics.RecordRemoteLookup(metrics.TargetCustomerRegistry, result, time.Since(start))

	switch result {
	case metrics.ResultFound:
		return nil
	case metrics.ResultNotFound:
		o.metrics.RecordPlacementFailure(reasonCustomerNotFound)
		return domain.ErrCustomerNotFound
	default:
		o.metrics.RecordPlacementFailure(reasonCustomerUnavailable)
		return collapseTransient(domain.ErrCustomerNotFound, "customer registry", err)
	}
}

// lookupResult раскладывает ответ удалённого вызова на found / not_found / transient.
// Любая ошибка кроме явного NotFound считается временной.
func lookupResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultFound
	case domain.IsTransient(err):
		return metrics.ResultTransient
	case errors.Is(err, domain.ErrDishNotFound), errors.Is(err, domain.ErrCustomerNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultTransient
	}
}

// collapseTransient сохраняет в цепочке и NotFound для клиента, и ErrRemoteUnavailable для диагностики.
func collapseTransient(notFound error, target string, err error) error {
	if !domain.IsTransient(err) {
		err = domain.RemoteUnavailable(target, err)
	}
	return fmt.Errorf("%w: %w", notFound, err)
}

// CancelOrder отменяет заказ, если с момента оформления прошло строго меньше 10 минут.
// Повторная отмена уже отменённого заказа возвращает его без ошибки с Transitioned=false.
// Из конкурирующих отмен одного заказа только одна получает Transitioned=true.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID int64) (CancelResult, error) {
	defer o.metrics.TrackOperation("cancel_order")()

	logger := o.logger.WithField("order_id", orderID)

	if orderID <= 0 {
		o.metrics.RecordCancellationRejected(reasonInvalidInput)
		return CancelResult{}, domain.InvalidInput(domain.ErrOrderIDRequired)
	}

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			o.metrics.RecordCancellationRejected(reasonOrderNotFound)
		}
		return CancelResult{}, err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		if order.Status == domain.OrderStatusCancelled {
			logger.Debug("order already cancelled")
			return CancelResult{Order: order.Summary()}, nil
		}

		now := o.clock.Now()
		if !domain.CancellationAllowed(order.PlacedAt, now) {
			o.metrics.RecordCancellationRejected(reasonWindowExpired)
			logger.WithFields(log.Fields{
				"placed_at": order.PlacedAt.Format(time.RFC3339Nano),
				"elapsed":   now.Sub(order.PlacedAt).String(),
			}).Info("cancellation rejected: window expired")
			return CancelResult{}, domain.ErrCancellationWindowExpired
		}

		updated := order
		if err := updated.Cancel(now); err != nil {
			return CancelResult{}, err
		}

		err := o.orders.Save(ctx, updated)
		if err == nil {
			return o.completeCancellation(ctx, orderID, now)
		}
		if !domain.IsVersionConflict(err) {
			logger.WithError(err).Error("persist cancellation failed")
			return CancelResult{}, domain.Persistence("save order", err)
		}

		logger.WithFields(log.Fields{
			"attempt": attempt + 1,
			"version": order.Version,
		}).Warn("version conflict detected, reloading order")

		if order, err = o.loadOrder(ctx, orderID); err != nil {
			return CancelResult{}, err
		}

		if attempt < maxSaveAttempts-1 && order.Status != domain.OrderStatusCancelled {
			select {
			case <-ctx.Done():
				return CancelResult{}, ctx.Err()
			case <-time.After(baseRetryDelay * time.Duration(1<<uint(attempt))):
			}
		}
	}

	if order.Status == domain.OrderStatusCancelled {
		return CancelResult{Order: order.Summary()}, nil
	}
	o.metrics.RecordCancellationRejected(reasonVersionConflict)
	return CancelResult{}, domain.ErrOrderVersionConflict
}

// completeCancellation перечитывает заказ после сохранения и фиксирует событие.
func (o *Orchestrator) completeCancellation(ctx context.Context, orderID int64, at time.Time) (CancelResult, error) {
	stored, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return CancelResult{}, err
	}

	o.metrics.RecordOrderCancelled()
	o.recordTimeline(ctx, stored.ID, domain.TimelineOrderCancelled, "cancelled by customer", at)
	o.emitOrderEvent(ctx, stored, domain.EventOrderCancelled, "", at)
	o.logger.WithField("order_id", orderID).Info("order cancelled")

	return CancelResult{Order: stored.Summary(), Transitioned: true}, nil
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	order, err := o.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, err
		}
		o.logger.WithError(err).WithField("order_id", orderID).Error("load order failed")
		return domain.Order{}, domain.Persistence("load order", err)
	}
	return order, nil
}

// ListOrdersForCustomer возвращает заказы клиента в порядке хранилища.
// Клиент без заказов получает пустой срез, а не ошибку.
func (o *Orchestrator) ListOrdersForCustomer(ctx context.Context, customerID int64) ([]domain.OrderSummary, error) {
	defer o.metrics.TrackOperation("list_orders")()

	if customerID <= 0 {
		return nil, domain.InvalidInput(domain.ErrCustomerIDRequired)
	}

	start := time.Now()
	_, err := o.customers.Lookup(ctx, customerID)
	result := lookupResult(err)
	o.metrics.RecordRemoteLookup(metrics.TargetCustomerRegistry, result, time.Since(start))
	switch result {
	case metrics.ResultNotFound:
		return nil, domain.ErrCustomerNotFound
	case metrics.ResultTransient:
		o.logger.WithError(err).WithField("customer_id", customerID).Warn("customer lookup failed")
		return nil, collapseTransient(domain.ErrCustomerNotFound, "customer registry", err)
	}

	orders, err := o.orders.ListByCustomer(ctx, customerID, 0)
	if err != nil {
		o.logger.WithError(err).WithField("customer_id", customerID).Error("list orders failed")
		return nil, domain.Persistence("list orders", err)
	}

	summaries := make([]domain.OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, order.Summary())
	}
	return summaries, nil
}

// GetOrder возвращает заказ и его timeline.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID int64) (OrderDetails, error) {
	if orderID <= 0 {
		return OrderDetails{}, domain.InvalidInput(domain.ErrOrderIDRequired)
	}

	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}

	details := OrderDetails{Order: order.Summary(), Timeline: []domain.TimelineEvent{}}
	if o.timeline == nil {
		return details, nil
	}

	events, err := o.timeline.List(ctx, orderID)
	if err != nil {
		// Timeline вспомогательный: заказ отдаём и без него.
		o.logger.WithError(err).WithField("order_id", orderID).Warn("load timeline failed")
		return details, nil
	}
	details.Timeline = events
	return details, nil
}

// Dish проксирует запрос блюда в каталог. Временный сбой здесь не маскируется.
func (o *Orchestrator) Dish(ctx context.Context, dishID int64) (domain.Dish, error) {
	if dishID <= 0 {
		return domain.Dish{}, domain.InvalidInput(domain.ErrDishIDRequired)
	}
	return o.dishes.Dish(ctx, dishID)
}

// Menu возвращает блюда категории из каталога.
func (o *Orchestrator) Menu(ctx context.Context, category string) ([]domain.Dish, error) {
	if category == "" {
		return nil, domain.InvalidInput(domain.ErrDishCategoryRequired)
	}
	return o.dishes.DishesByCategory(ctx, category)
}
