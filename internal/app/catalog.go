package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/catalog"
	"github.com/vladislavdragonenkov/foodorder/internal/discovery"
	healthcheck "github.com/vladislavdragonenkov/foodorder/internal/health"
	httpsvc "github.com/vladislavdragonenkov/foodorder/internal/service/http"
	"github.com/vladislavdragonenkov/foodorder/internal/version"
)

// catalogServer: собранный catalog-service.
type catalogServer struct {
	cfg    CatalogConfig
	logger *log.Entry

	repos *repositories
	redis *redis.Client

	heartbeat *discovery.Heartbeat

	apiServer   *http.Server
	opsServer   *http.Server
	apiListener net.Listener
	opsListener net.Listener
}

func newCatalogServer(ctx context.Context, cfg CatalogConfig, logger *log.Entry) (srv *catalogServer, err error) {
	srv = &catalogServer{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			srv.release()
			srv = nil
		}
	}()

	if srv.repos, err = initRepositories(ctx, cfg.StorageConfig, logger.WithField("component", "storage")); err != nil {
		return srv, err
	}

	service := catalog.NewService(srv.repos.dishes, logger.WithField("component", "catalog"))
	if cfg.MenuFile != "" {
		menu, err := catalog.LoadMenuFile(cfg.MenuFile)
		if err != nil {
			return srv, err
		}
		seeded, err := service.Seed(ctx, menu)
		if err != nil {
			return srv, fmt.Errorf("seed menu: %w", err)
		}
		logger.WithFields(log.Fields{"file": cfg.MenuFile, "dishes": seeded}).Info("menu loaded")
	}

	if srv.redis, err = openRedis(ctx, cfg.RedisAddr); err != nil {
		return srv, err
	}
	if srv.redis != nil {
		srv.heartbeat = discovery.NewHeartbeat(
			discovery.NewRedisRegistry(srv.redis, cfg.DiscoveryPrefix),
			catalog.ServiceName,
			cfg.AdvertiseAddr,
			cfg.RegistrationTTL,
			logger.WithField("component", "discovery-heartbeat"),
		)
	}

	health := healthcheck.NewHandler(version.GetVersion())
	health.RegisterChecker("storage", healthcheck.NewChecker("storage", srv.repos.ping))
	if srv.redis != nil {
		health.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return srv.redis.Ping(ctx).Err()
		}))
	}

	reg := newMetricsRegistry()
	srv.repos.registerMetrics(reg, "catalog")
	httpLogger := logger.WithField("layer", "http")
	srv.apiServer = newHTTPServer(httpsvc.NewCatalogRouter(httpsvc.NewCatalogHandler(service, httpLogger), httpLogger))
	srv.opsServer = newHTTPServer(newOpsHandler(reg, health))

	if srv.apiListener, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return srv, fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	if srv.opsListener, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
		return srv, fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
	}
	return srv, nil
}

func (s *catalogServer) serve(ctx context.Context) error {
	defer s.release()

	errCh := make(chan error, 2)
	serveHTTP(s.apiServer, s.apiListener, "catalog api", s.logger, errCh)
	serveHTTP(s.opsServer, s.opsListener, "ops", s.logger, errCh)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if s.heartbeat != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.heartbeat.Run(hbCtx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		runErr = ctx.Err()
	case err := <-errCh:
		s.logger.WithError(err).Error("server failed")
		runErr = err
	}

	// Снимаем регистрацию до остановки HTTP, чтобы клиенты не получали адрес закрытого сервера.
	stopHeartbeat()
	wg.Wait()

	shutdownHTTP(s.apiServer, s.cfg.ShutdownTimeout, s.logger)
	shutdownHTTP(s.opsServer, s.cfg.ShutdownTimeout, s.logger)
	return runErr
}

func (s *catalogServer) release() {
	for _, lis := range []net.Listener{s.apiListener, s.opsListener} {
		if lis != nil {
			_ = lis.Close()
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
	}
	s.repos.close(s.logger)
	s.repos = nil
}

// RunCatalog запускает catalog-service и блокируется до отмены ctx.
func RunCatalog(ctx context.Context, cfg CatalogConfig, logger *log.Entry) error {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-app")
	}
	srv, err := newCatalogServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.serve(ctx)
}
