// Команда catalog-service отдаёт меню по HTTP и регистрируется в discovery.
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

func setup() (app.CatalogConfig, *log.Entry, error) {
	if err := app.LoadDotEnv(); err != nil {
		return app.CatalogConfig{}, nil, err
	}
	cfg, err := app.LoadCatalogConfig()
	if err != nil {
		return app.CatalogConfig{}, nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return app.CatalogConfig{}, nil, err
	}
	return cfg, logger.WithField("service", "catalog-service"), nil
}

func main() {
	cfg, logger, err := setup()
	if err != nil {
		log.WithError(err).Fatal("не удалось прочитать конфигурацию")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"version":   version.String(),
		"http_addr": cfg.HTTPAddr,
		"menu":      cfg.MenuFile,
		"discovery": cfg.RedisAddr != "",
	}).Info("запускаем catalog-service")

	if err := app.RunCatalog(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("каталог завершился с ошибкой")
	}

	logger.Info("catalog-service остановлен")
}
