package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/catalog"
	"github.com/vladislavdragonenkov/foodorder/internal/discovery"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const redisDialTimeout = 3 * time.Second

// openRedis подключается к redis; пустой адрес означает, что реестр не используется.
func openRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: redisDialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// buildResolver собирает цепочку: статический адрес каталога, затем redis-реестр.
func buildResolver(staticAddr string, registry *discovery.RedisRegistry, logger *log.Entry) (domain.Resolver, error) {
	var chain discovery.Chain
	if staticAddr != "" {
		chain = append(chain, discovery.NewStaticResolver(map[string]string{catalog.ServiceName: staticAddr}))
	}
	if registry != nil {
		chain = append(chain, registry)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no way to locate %s: set FOOD_SERVICE_ADDR or REDIS_ADDR", catalog.ServiceName)
	}

	logger.WithFields(log.Fields{
		"static":   staticAddr != "",
		"registry": registry != nil,
	}).Info("service discovery configured")
	return chain, nil
}
