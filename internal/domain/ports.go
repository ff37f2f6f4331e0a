package domain

import (
	"context"
	"time"
)

// DishCatalog описывает удалённый каталог блюд.
// Если блюда нет, возвращает ErrDishNotFound, при сбое вызова ErrRemoteUnavailable.
type DishCatalog interface {
	Dish(ctx context.Context, id int64) (Dish, error)
	DishesByCategory(ctx context.Context, category string) ([]Dish, error)
}

// CustomerRegistry описывает реестр клиентов.
// Если клиента нет, возвращает ErrCustomerNotFound, при сбое вызова ErrRemoteUnavailable.
type CustomerRegistry interface {
	Lookup(ctx context.Context, id int64) (CustomerProfile, error)
}

// Resolver превращает логическое имя сервиса в сетевой адрес.
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) (string, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release освобождает ключ, который ещё в статусе processing, чтобы повтор выполнил запрос заново.
	// Завершённые записи не трогает; отсутствующий ключ не считается ошибкой.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
