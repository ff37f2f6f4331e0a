// Package registry реализует реестр клиентов: регистрация с проверкой уникальности контактов и поиск.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
)

const targetName = "customer-registry"

// Service реализует регистрацию и поиск клиентов.
//
// Проверки email и телефона перед вставкой только экономят обращение к хранилищу:
// окончательно уникальность гарантирует CustomerRepository.Create.
type Service struct {
	customers  domain.CustomerRepository
	outbox     domain.OutboxRepository
	clock      clock.Clock
	metrics    *metrics.OrderMetrics
	logger     *log.Entry
	bcryptCost int
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает публикацию события customer.registered.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = outbox }
}

// WithClock подменяет часы.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics подключает метрики регистрации.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBcryptCost задаёт стоимость хеширования пароля.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewService создаёт реестр клиентов.
func NewService(customers domain.CustomerRepository, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "registry")
	}
	s := &Service{
		customers:  customers,
		clock:      clock.NewSystem(),
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register валидирует данные, проверяет уникальность и создаёт клиента.
func (s *Service) Register(ctx context.Context, reg domain.CustomerRegistration) (domain.CustomerProfile, error) {
	reg = reg.Normalize()
	if errs := reg.Validate(); len(errs) > 0 {
		return domain.CustomerProfile{}, domain.InvalidInput(errs...)
	}

	if err := s.ensureUnique(ctx, reg); err != nil {
		return domain.CustomerProfile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Passcode), s.bcryptCost)
	if err != nil {
		return domain.CustomerProfile{}, domain.InvalidInput(err)
	}

	created, err := s.customers.Create(ctx, domain.Customer{
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Email:        reg.Email,
		PhoneNumber:  reg.PhoneNumber,
		Address:      reg.Address,
		City:         reg.City,
		State:        reg.State,
		ZipCode:      reg.ZipCode,
		PasscodeHash: hash,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		if conflict := s.conflict(err); conflict != nil {
			return domain.CustomerProfile{}, conflict
		}
		s.logger.WithError(err).Error("create customer failed")
		return domain.CustomerProfile{}, domain.Persistence("create customer", err)
	}

	s.metrics.RecordCustomerRegistered()
	s.emitRegistered(ctx, created)
	s.logger.WithField("customer_id", created.ID).Info("customer registered")

	return created.Profile(), nil
}

func (s *Service) ensureUnique(ctx context.Context, reg domain.CustomerRegistration) error {
	if _, err := s.customers.GetByEmail(ctx, reg.Email); err == nil {
		return s.conflict(domain.ErrEmailAlreadyExists)
	} else if !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Persistence("check email", err)
	}

	if _, err := s.customers.GetByPhone(ctx, reg.PhoneNumber); err == nil {
		return s.conflict(domain.ErrPhoneAlreadyExists)
	} else if !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Persistence("check phone", err)
	}
	return nil
}

// conflict учитывает конфликт уникальности и возвращает его; для прочих ошибок возвращает nil.
func (s *Service) conflict(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		s.metrics.RecordRegistrationConflict("email")
	case errors.Is(err, domain.ErrPhoneAlreadyExists):
		s.metrics.RecordRegistrationConflict("phone")
	default:
		return nil
	}
	s.logger.WithError(err).Debug("registration rejected")
	return err
}

// Lookup возвращает профиль клиента по идентификатору.
// Сбой хранилища сообщается как ErrRemoteUnavailable, чтобы оркестратор отличал его от отсутствия клиента.
func (s *Service) Lookup(ctx context.Context, id int64) (domain.CustomerProfile, error) {
	if id <= 0 {
		return domain.CustomerProfile{}, domain.InvalidInput(domain.ErrCustomerIDRequired)
	}
	return s.lookup(ctx, func(ctx context.Context) (domain.Customer, error) {
		return s.customers.Get(ctx, id)
	})
}

// LookupByEmail ищет клиента по email без учёта регистра.
func (s *Service) LookupByEmail(ctx context.Context, email string) (domain.CustomerProfile, error) {
	reg := domain.CustomerRegistration{Email: email}.Normalize()
	if reg.Email == "" {
		return domain.CustomerProfile{}, domain.InvalidInput(domain.ErrEmailRequired)
	}
	return s.lookup(ctx, func(ctx context.Context) (domain.Customer, error) {
		return s.customers.GetByEmail(ctx, reg.Email)
	})
}

// LookupByPhone ищет клиента по номеру телефона.
func (s *Service) LookupByPhone(ctx context.Context, phone string) (domain.CustomerProfile, error) {
	reg := domain.CustomerRegistration{PhoneNumber: phone}.Normalize()
	if reg.PhoneNumber == "" {
		return domain.CustomerProfile{}, domain.InvalidInput(domain.ErrPhoneInvalid)
	}
	return s.lookup(ctx, func(ctx context.Context) (domain.Customer, error) {
		return s.customers.GetByPhone(ctx, reg.PhoneNumber)
	})
}

func (s *Service) lookup(ctx context.Context, load func(context.Context) (domain.Customer, error)) (domain.CustomerProfile, error) {
	customer, err := load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.CustomerProfile{}, err
		}
		return domain.CustomerProfile{}, domain.RemoteUnavailable(targetName, err)
	}
	return customer.Profile(), nil
}

func (s *Service) emitRegistered(ctx context.Context, customer domain.Customer) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(domain.CustomerEventPayload{
		CustomerID: customer.ID,
		OccurredAt: customer.CreatedAt,
	})
	if err != nil {
		s.logger.WithError(err).Error("marshal customer event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateCustomer,
		AggregateID:   strconv.FormatInt(customer.ID, 10),
		EventType:     domain.EventCustomerRegistered,
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("customer_id", customer.ID).Warn("enqueue customer event failed")
		return
	}
	s.metrics.RecordOutboxEvent(domain.EventCustomerRegistered)
}

var _ domain.CustomerRegistry = (*Service)(nil)
