// Package app собирает и запускает order-service и catalog-service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/foodorder/internal/catalog"
	"github.com/vladislavdragonenkov/foodorder/internal/discovery"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/foodorder/internal/health"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
	"github.com/vladislavdragonenkov/foodorder/internal/registry"
	grpcsvc "github.com/vladislavdragonenkov/foodorder/internal/service/grpc"
	httpsvc "github.com/vladislavdragonenkov/foodorder/internal/service/http"
	"github.com/vladislavdragonenkov/foodorder/internal/service/idempotency"
	"github.com/vladislavdragonenkov/foodorder/internal/service/ordering"
	"github.com/vladislavdragonenkov/foodorder/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodorder/internal/version"
	foodorderv1 "github.com/vladislavdragonenkov/foodorder/proto/foodorder/v1"
)

// orderServer держит собранный order-service: хранилище, оркестратор, транспорты и воркеры.
type orderServer struct {
	cfg    Config
	logger *log.Entry

	repos    *repositories
	redis    *redis.Client
	producer *kafka.Producer

	grpcServer   *grpc.Server
	healthServer *health.Server
	apiServer    *http.Server
	opsServer    *http.Server

	grpcListener net.Listener
	apiListener  net.Listener
	opsListener  net.Listener

	workers []func(context.Context)
}

// newMetricsRegistry создаёт реестр со стандартными коллекторами процесса.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newOrderServer(ctx context.Context, cfg Config, logger *log.Entry) (srv *orderServer, err error) {
	srv = &orderServer{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			srv.release()
			srv = nil
		}
	}()

	if srv.repos, err = initRepositories(ctx, cfg.StorageConfig, logger.WithField("component", "storage")); err != nil {
		return srv, err
	}
	if srv.redis, err = openRedis(ctx, cfg.RedisAddr); err != nil {
		return srv, err
	}

	var serviceRegistry *discovery.RedisRegistry
	if srv.redis != nil {
		serviceRegistry = discovery.NewRedisRegistry(srv.redis, cfg.DiscoveryPrefix)
	}
	resolver, err := buildResolver(cfg.FoodServiceAddr, serviceRegistry, logger)
	if err != nil {
		return srv, err
	}

	reg := newMetricsRegistry()
	srv.repos.registerMetrics(reg, "foodorder")
	orderMetrics := metrics.NewOrderMetricsWithRegisterer(reg)
	workerMetrics := metrics.NewWorkerMetricsWithRegisterer(reg)

	dishes := catalog.NewClient(resolver,
		catalog.WithTimeout(cfg.CatalogTimeout),
		catalog.WithRetry(catalog.RetryPolicy{
			MaxAttempts:   cfg.CatalogRetries,
			InitialDelay:  cfg.CatalogRetryDelay,
			MaxDelay:      cfg.CatalogTimeout,
			BackoffFactor: 2,
		}),
		catalog.WithLogger(logger.WithField("component", "catalog-client")),
	)
	customers := registry.NewService(srv.repos.customers, logger.WithField("component", "customer-registry"),
		registry.WithOutbox(srv.repos.outbox),
		registry.WithMetrics(orderMetrics),
	)
	orch := ordering.NewOrchestrator(srv.repos.orders, dishes, customers, logger.WithField("component", "orchestrator"),
		ordering.WithTimeline(srv.repos.timeline),
		ordering.WithOutbox(srv.repos.outbox),
		ordering.WithMetrics(orderMetrics),
	)

	producer, kafkaErr := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if kafkaErr != nil {
		logger.WithError(kafkaErr).Warn("failed to create kafka producer, continuing without outbox publishing")
	}
	srv.producer = producer

	grpcMetrics := promgrpc.NewServerMetrics()
	reg.MustRegister(grpcMetrics)
	srv.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	foodorderv1.RegisterOrderServiceServer(srv.grpcServer,
		grpcsvc.NewOrderService(orch, customers, srv.repos.idempotency, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(srv.grpcServer)

	srv.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(srv.grpcServer, srv.healthServer)

	httpLogger := logger.WithField("layer", "http")
	srv.apiServer = newHTTPServer(httpsvc.NewOrderRouter(httpsvc.NewOrderHandler(orch, customers, httpLogger), httpLogger))
	srv.opsServer = newHTTPServer(newOpsHandler(reg, srv.healthChecks(resolver)))

	srv.workers = append(srv.workers, idempotency.NewCleanupWorker(srv.repos.idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMetrics(workerMetrics),
	).Run)
	if srv.producer != nil {
		srv.workers = append(srv.workers, outbox.NewWorker(srv.repos.outbox, kafka.NewOutboxPublisher(srv.producer, ""),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(srv.producer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithMetrics(workerMetrics),
		).Run)
	}

	if srv.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
		return srv, fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	if srv.apiListener, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return srv, fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	if srv.opsListener, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
		return srv, fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
	}
	return srv, nil
}

// healthChecks регистрирует проверки зависимостей. Хранилище обязательно, остальное понижает статус до degraded.
func (s *orderServer) healthChecks(resolver domain.Resolver) *healthcheck.Handler {
	h := healthcheck.NewHandler(version.GetVersion())
	h.RegisterChecker("storage", healthcheck.NewChecker("storage", s.repos.ping))
	h.RegisterChecker(catalog.ServiceName, healthcheck.NewOptionalChecker(catalog.ServiceName, func(ctx context.Context) error {
		_, err := resolver.Resolve(ctx, catalog.ServiceName)
		return err
	}))
	if s.redis != nil {
		h.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		}))
	}
	if s.producer != nil {
		h.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", s.producer.Check))
	}
	return h
}

// serve обслуживает запросы до отмены ctx или падения одного из серверов.
func (s *orderServer) serve(ctx context.Context) error {
	defer s.release()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, run := range s.workers {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workerCtx)
		}(run)
	}

	errCh := make(chan error, 3)
	go func() {
		s.logger.WithField("addr", s.grpcListener.Addr().String()).Info("grpc server listening")
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	serveHTTP(s.apiServer, s.apiListener, "api", s.logger, errCh)
	serveHTTP(s.opsServer, s.opsListener, "ops", s.logger, errCh)

	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.healthServer.SetServingStatus(foodorderv1.ServiceName, healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		runErr = ctx.Err()
	case err := <-errCh:
		s.logger.WithError(err).Error("server failed")
		runErr = err
	}

	s.healthServer.Shutdown()
	s.stopGRPC()
	shutdownHTTP(s.apiServer, s.cfg.ShutdownTimeout, s.logger)
	shutdownHTTP(s.opsServer, s.cfg.ShutdownTimeout, s.logger)

	cancelWorkers()
	wg.Wait()
	return runErr
}

func (s *orderServer) stopGRPC() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("graceful stop timed out, forcing grpc shutdown")
		s.grpcServer.Stop()
	}
}

// release закрывает внешние ресурсы. Безопасно вызывать на частично собранном сервере.
func (s *orderServer) release() {
	for _, lis := range []net.Listener{s.grpcListener, s.apiListener, s.opsListener} {
		if lis != nil {
			_ = lis.Close()
		}
	}
	closeKafka(s.producer, s.logger)
	s.producer = nil
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
	}
	s.repos.close(s.logger)
	s.repos = nil
}

// Run запускает order-service и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config, logger *log.Entry) error {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}
	srv, err := newOrderServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.serve(ctx)
}
