// Команда order-service поднимает gRPC и HTTP API сервиса заказов.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/app"
	"github.com/vladislavdragonenkov/foodorder/internal/version"
)

// setup читает .env и окружение и готовит логгер.
func setup() (app.Config, *log.Entry, error) {
	if err := app.LoadDotEnv(); err != nil {
		return app.Config{}, nil, err
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return app.Config{}, nil, err
	}
	return cfg, logger.WithField("service", "order-service"), nil
}

func main() {
	cfg, logger, err := setup()
	if err != nil {
		log.WithError(err).Fatal("не удалось прочитать конфигурацию")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"version":      version.String(),
		"grpc_addr":    cfg.GRPCAddr,
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.Driver,
	}).Info("запускаем order-service")

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	logger.Info("order-service остановлен")
}
