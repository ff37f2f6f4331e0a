package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const (
	customerEmailConstraint = "customers_email_key"
	customerPhoneConstraint = "customers_phone_number_key"

	customerColumns = `id, first_name, last_name, email, phone_number, address, city, state, zip_code, passcode_hash, created_at`
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
// Уникальность email и телефона обеспечивают ограничения таблицы customers.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer.Email = strings.ToLower(customer.Email)
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (
			first_name, last_name, email, phone_number, address, city, state, zip_code, passcode_hash, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`,
		customer.FirstName, customer.LastName, customer.Email, customer.PhoneNumber,
		customer.Address, customer.City, customer.State, customer.ZipCode,
		customer.PasscodeHash, customer.CreatedAt,
	).Scan(&customer.ID)
	if err != nil {
		switch violatedConstraint(err) {
		case customerEmailConstraint:
			return domain.Customer{}, domain.ErrEmailAlreadyExists
		case customerPhoneConstraint:
			return domain.Customer{}, domain.ErrPhoneAlreadyExists
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	return r.getBy(ctx, "id", id)
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return r.getBy(ctx, "phone_number", strings.TrimSpace(phone))
}

// getBy выбирает клиента по одной из уникальных колонок; column задаётся только кодом пакета.
func (r *customerRepository) getBy(ctx context.Context, column string, value any) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE `+column+` = $1`, value).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.Address, &c.City, &c.State, &c.ZipCode, &c.PasscodeHash, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer by %s: %w", column, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
