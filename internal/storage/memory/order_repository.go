package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// orderRepositoryInMemory: in-memory реализация OrderRepository с последовательными ID.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	nextID     int64
	items      map[int64]domain.Order
	byCustomer map[int64][]int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:      make(map[int64]domain.Order),
		byCustomer: make(map[int64][]int64),
	}
}

// Create присваивает заказу следующий ID и сохраняет его.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	order.Version = 0
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.PlacedAt
	}
	r.items[order.ID] = order
	r.byCustomer[order.CustomerID] = append(r.byCustomer[order.CustomerID], order.ID)
	return order, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByCustomer возвращает заказы клиента в порядке создания, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byCustomer[customerID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		result = append(result, r.items[id])
	}
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Время оформления и ссылки не меняются после создания.
	order.PlacedAt = current.PlacedAt
	order.CustomerID = current.CustomerID
	order.DishID = current.DishID
	order.Version++
	r.items[order.ID] = order
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
