package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ и возвращает его с присвоенным ID.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id int64) (Order, error)
	// ListByCustomer возвращает заказы клиента в порядке создания; limit <= 0 снимает ограничение.
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// CustomerRepository хранит клиентов. Уникальность email и телефона
// обеспечивает само хранилище: Create возвращает ErrEmailAlreadyExists
// или ErrPhoneAlreadyExists даже при гонке конкурентных регистраций.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	GetByPhone(ctx context.Context, phone string) (Customer, error)
}

// DishRepository хранит меню каталога.
type DishRepository interface {
	Create(ctx context.Context, dish Dish) (Dish, error)
	Get(ctx context.Context, id int64) (Dish, error)
	ListByCategory(ctx context.Context, category string) ([]Dish, error)
}
