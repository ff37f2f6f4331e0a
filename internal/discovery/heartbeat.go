package discovery

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registrar регистрирует экземпляр сервиса с TTL.
type Registrar interface {
	Register(ctx context.Context, serviceName, addr string, ttl time.Duration) error
	Deregister(ctx context.Context, serviceName, addr string) error
}

// Heartbeat периодически продлевает регистрацию экземпляра.
type Heartbeat struct {
	registrar   Registrar
	serviceName string
	addr        string
	ttl         time.Duration
	interval    time.Duration
	logger      *log.Entry
}

// NewHeartbeat создаёт heartbeat; интервал продления равен ttl/3.
func NewHeartbeat(registrar Registrar, serviceName, addr string, ttl time.Duration, logger *log.Entry) *Heartbeat {
	if logger == nil {
		logger = log.WithField("component", "discovery-heartbeat")
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	return &Heartbeat{
		registrar:   registrar,
		serviceName: serviceName,
		addr:        addr,
		ttl:         ttl,
		interval:    interval,
		logger:      logger.WithFields(log.Fields{"service": serviceName, "addr": addr}),
	}
}

// Run регистрирует экземпляр сразу и затем на каждом тике до отмены ctx.
// При выходе экземпляр снимается с регистрации.
func (h *Heartbeat) Run(ctx context.Context) {
	h.beat(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deregisterCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := h.registrar.Deregister(deregisterCtx, h.serviceName, h.addr); err != nil {
				h.logger.WithError(err).Warn("не удалось снять регистрацию")
			}
			cancel()
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if err := h.registrar.Register(ctx, h.serviceName, h.addr, h.ttl); err != nil {
		h.logger.WithError(err).Warn("heartbeat не отправлен")
		return
	}
	h.logger.Debug("heartbeat отправлен")
}
