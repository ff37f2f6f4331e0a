package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// customerRepositoryInMemory держит индексы по email и телефону под одной блокировкой,
// поэтому проверка уникальности и вставка атомарны.
type customerRepositoryInMemory struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]domain.Customer
	byEmail map[string]int64
	byPhone map[string]int64
}

// NewCustomerRepository создаёт in-memory реализацию CustomerRepository.
func NewCustomerRepository() domain.CustomerRepository {
	return &customerRepositoryInMemory{
		items:   make(map[int64]domain.Customer),
		byEmail: make(map[string]int64),
		byPhone: make(map[string]int64),
	}
}

func (r *customerRepositoryInMemory) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	email := strings.ToLower(customer.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return domain.Customer{}, domain.ErrEmailAlreadyExists
	}
	if _, taken := r.byPhone[customer.PhoneNumber]; taken {
		return domain.Customer{}, domain.ErrPhoneAlreadyExists
	}

	r.nextID++
	customer.ID = r.nextID
	customer.Email = email
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.PasscodeHash = append([]byte(nil), customer.PasscodeHash...)

	r.items[customer.ID] = customer
	r.byEmail[email] = customer.ID
	r.byPhone[customer.PhoneNumber] = customer.ID
	return customer, nil
}

func (r *customerRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return r.items[id], nil
}

func (r *customerRepositoryInMemory) GetByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[strings.TrimSpace(phone)]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return r.items[id], nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
