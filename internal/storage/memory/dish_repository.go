package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// dishRepositoryInMemory хранит меню каталога.
type dishRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	order  []int64
	items  map[int64]domain.Dish
}

// NewDishRepository создаёт in-memory реализацию DishRepository.
func NewDishRepository() domain.DishRepository {
	return &dishRepositoryInMemory{items: make(map[int64]domain.Dish)}
}

// Create добавляет блюдо. Явно заданный ID сохраняется, иначе присваивается следующий.
func (r *dishRepositoryInMemory) Create(ctx context.Context, dish domain.Dish) (domain.Dish, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dish{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dish.ID == 0 {
		dish.ID = r.nextID + 1
	}
	if _, exists := r.items[dish.ID]; exists {
		return domain.Dish{}, domain.ErrDishAlreadyExists
	}
	if dish.ID > r.nextID {
		r.nextID = dish.ID
	}
	r.items[dish.ID] = dish
	r.order = append(r.order, dish.ID)
	return dish, nil
}

func (r *dishRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Dish, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dish{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	dish, ok := r.items[id]
	if !ok {
		return domain.Dish{}, domain.ErrDishNotFound
	}
	return dish, nil
}

// ListByCategory возвращает блюда категории без учёта регистра. Пустой результат не является ошибкой.
func (r *dishRepositoryInMemory) ListByCategory(ctx context.Context, category string) ([]domain.Dish, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Dish, 0)
	for _, id := range r.order {
		dish := r.items[id]
		if strings.EqualFold(dish.Category, category) {
			result = append(result, dish)
		}
	}
	return result, nil
}

var _ domain.DishRepository = (*dishRepositoryInMemory)(nil)
