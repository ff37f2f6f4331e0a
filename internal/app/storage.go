package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/postgres"
)

// repositories: набор хранилищ выбранного драйвера.
type repositories struct {
	orders      domain.OrderRepository
	customers   domain.CustomerRepository
	dishes      domain.DishRepository
	timeline    domain.TimelineRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository

	store *postgres.Store
}

// ping проверяет доступность хранилища для health-проверки.
func (r *repositories) ping(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Ping(ctx)
}

// registerMetrics добавляет статистику пула соединений, если используется postgres.
func (r *repositories) registerMetrics(reg prometheus.Registerer, dbName string) {
	if r == nil || r.store == nil {
		return
	}
	reg.MustRegister(r.store.MetricsCollector(dbName))
}

func (r *repositories) close(logger *log.Entry) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}

// initRepositories открывает хранилище по настройкам. Для postgres при AutoMigrate применяются миграции.
func initRepositories(ctx context.Context, cfg StorageConfig, logger *log.Entry) (*repositories, error) {
	switch cfg.Driver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return &repositories{
			orders:      memory.NewOrderRepository(),
			customers:   memory.NewCustomerRepository(),
			dishes:      memory.NewDishRepository(),
			timeline:    memory.NewTimelineRepository(),
			outbox:      memory.NewOutboxRepository(),
			idempotency: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithPool(postgres.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.WithFields(log.Fields{
			"auto_migrate":   cfg.AutoMigrate,
			"max_open_conns": store.Pool().MaxOpenConns,
		}).Info("using postgres storage")
		return &repositories{
			orders:      postgres.NewOrderRepository(store),
			customers:   postgres.NewCustomerRepository(store),
			dishes:      postgres.NewDishRepository(store),
			timeline:    postgres.NewTimelineRepository(store),
			outbox:      postgres.NewOutboxRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			store:       store,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
