package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const (
	defaultKeyPrefix = "discovery"
	scanBatch        = 100
)

// RedisRegistry хранит экземпляры сервисов как ключи с TTL:
// `<prefix>:<service>:<addr>` → addr. Экземпляр, переставший слать heartbeat,
// исчезает по истечении TTL.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	next   atomic.Uint64
}

// NewRedisRegistry создаёт реестр поверх redis-клиента.
func NewRedisRegistry(client redis.UniversalClient, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) key(serviceName, addr string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, serviceName, addr)
}

// Register записывает (или продлевает) экземпляр сервиса на ttl.
func (r *RedisRegistry) Register(ctx context.Context, serviceName, addr string, ttl time.Duration) error {
	if serviceName == "" || addr == "" {
		return fmt.Errorf("register instance: service name and address are required")
	}
	if err := r.client.Set(ctx, r.key(serviceName, addr), addr, ttl).Err(); err != nil {
		return fmt.Errorf("register %s at %s: %w", serviceName, addr, err)
	}
	return nil
}

// Deregister удаляет экземпляр сервиса.
func (r *RedisRegistry) Deregister(ctx context.Context, serviceName, addr string) error {
	if err := r.client.Del(ctx, r.key(serviceName, addr)).Err(); err != nil {
		return fmt.Errorf("deregister %s at %s: %w", serviceName, addr, err)
	}
	return nil
}

// Instances возвращает отсортированный список живых адресов сервиса.
func (r *RedisRegistry) Instances(ctx context.Context, serviceName string) ([]string, error) {
	match := fmt.Sprintf("%s:%s:*", r.prefix, serviceName)

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, nextCursor, err := r.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan instances of %s: %w", serviceName, err)
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load instances of %s: %w", serviceName, err)
	}

	addrs := make([]string, 0, len(values))
	for _, v := range values {
		// Ключ мог истечь между SCAN и MGET.
		if s, ok := v.(string); ok && s != "" {
			addrs = append(addrs, s)
		}
	}
	sort.Strings(addrs)
	return addrs, nil
}

// Resolve выбирает экземпляр сервиса по кругу.
func (r *RedisRegistry) Resolve(ctx context.Context, serviceName string) (string, error) {
	addrs, err := r.Instances(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrServiceNotFound, serviceName)
	}
	idx := r.next.Add(1) - 1
	return addrs[idx%uint64(len(addrs))], nil
}

// Ping проверяет доступность redis (используется health-check'ом).
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ domain.Resolver = (*RedisRegistry)(nil)
