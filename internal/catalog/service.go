// Package catalog содержит каталог блюд: локальный сервис меню и HTTP-клиент к нему.
package catalog

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// Service отдаёт меню из DishRepository.
type Service struct {
	dishes domain.DishRepository
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(dishes domain.DishRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{dishes: dishes, logger: logger}
}

// Dish возвращает блюдо по идентификатору.
func (s *Service) Dish(ctx context.Context, id int64) (domain.Dish, error) {
	if id <= 0 {
		return domain.Dish{}, domain.InvalidInput(domain.ErrDishIDRequired)
	}
	dish, err := s.dishes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDishNotFound) {
			return domain.Dish{}, err
		}
		s.logger.WithError(err).WithField("dish_id", id).Error("load dish failed")
		return domain.Dish{}, domain.Persistence("load dish", err)
	}
	return dish, nil
}

// DishesByCategory возвращает блюда категории. Для пустой категории возвращает ErrNoDishesInCategory.
func (s *Service) DishesByCategory(ctx context.Context, category string) ([]domain.Dish, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, domain.InvalidInput(domain.ErrDishCategoryRequired)
	}
	dishes, err := s.dishes.ListByCategory(ctx, category)
	if err != nil {
		s.logger.WithError(err).WithField("category", category).Error("list dishes failed")
		return nil, domain.Persistence("list dishes", err)
	}
	if len(dishes) == 0 {
		return nil, domain.ErrNoDishesInCategory
	}
	return dishes, nil
}

// Seed загружает меню. Уже существующие блюда пропускаются, поэтому повторный запуск безопасен.
func (s *Service) Seed(ctx context.Context, menu []domain.Dish) (int, error) {
	loaded := 0
	for _, dish := range menu {
		if errs := dish.ValidateInvariants(); len(errs) > 0 {
			return loaded, domain.InvalidInput(errs...)
		}
		if _, err := s.dishes.Create(ctx, dish); err != nil {
			if errors.Is(err, domain.ErrDishAlreadyExists) {
				continue
			}
			return loaded, domain.Persistence("seed dish", err)
		}
		loaded++
	}
	s.logger.WithFields(log.Fields{
		"loaded": loaded,
		"total":  len(menu),
	}).Info("menu seeded")
	return loaded, nil
}

var _ domain.DishCatalog = (*Service)(nil)
