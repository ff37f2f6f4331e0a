package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

type dishRepository struct {
	db *sql.DB
}

// NewDishRepository создаёт PostgreSQL-реализацию DishRepository.
func NewDishRepository(store *Store) domain.DishRepository {
	return &dishRepository{db: store.DB()}
}

// Create добавляет блюдо. Явно заданный ID сохраняется как есть.
func (r *dishRepository) Create(ctx context.Context, dish domain.Dish) (domain.Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var err error
	if dish.ID > 0 {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO dishes (id, category, name, unit_price, description)
			VALUES ($1,$2,$3,$4,$5)
		`, dish.ID, dish.Category, dish.Name, dish.UnitPrice, dish.Description)
		if err == nil {
			// Сдвигаем последовательность, чтобы следующие вставки без ID не столкнулись с явными.
			_, err = r.db.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('dishes', 'id'), GREATEST((SELECT MAX(id) FROM dishes), 1))`)
		}
	} else {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO dishes (category, name, unit_price, description)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, dish.Category, dish.Name, dish.UnitPrice, dish.Description).Scan(&dish.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Dish{}, domain.ErrDishAlreadyExists
		}
		return domain.Dish{}, fmt.Errorf("insert dish: %w", err)
	}

	return dish, nil
}

const dishColumns = `id, category, name, unit_price, description`

func (r *dishRepository) Get(ctx context.Context, id int64) (domain.Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	d, err := scanDish(r.db.QueryRowContext(ctx, `SELECT `+dishColumns+` FROM dishes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Dish{}, domain.ErrDishNotFound
		}
		return domain.Dish{}, fmt.Errorf("select dish: %w", err)
	}
	return d, nil
}

// ListByCategory сравнивает категорию без учёта регистра.
func (r *dishRepository) ListByCategory(ctx context.Context, category string) ([]domain.Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return queryAll(ctx, r.db, "dishes", scanDish,
		`SELECT `+dishColumns+` FROM dishes WHERE LOWER(category) = LOWER($1) ORDER BY id ASC`,
		strings.TrimSpace(category))
}

func scanDish(row rowScanner) (domain.Dish, error) {
	var d domain.Dish
	err := row.Scan(&d.ID, &d.Category, &d.Name, &d.UnitPrice, &d.Description)
	return d, err
}

var _ domain.DishRepository = (*dishRepository)(nil)
