package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/metrics"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

func validRegistration() domain.CustomerRegistration {
	return domain.CustomerRegistration{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "Ada@Example.com",
		PhoneNumber: "5551234567",
		Address:     "12 Analytical St",
		City:        "London",
		State:       "LDN",
		ZipCode:     "10001",
		Passcode:    "s3cret!",
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, domain.CustomerRepository) {
	t.Helper()
	repo := memory.NewCustomerRepository()
	opts = append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
	}, opts...)
	return NewService(repo, nil, opts...), repo
}

func TestRegisterCreatesCustomerWithHashedPasscode(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	outbox := memory.NewOutboxRepository()
	svc, repo := newTestService(t, WithClock(clock.NewManual(now)), WithOutbox(outbox))

	profile, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	require.Positive(t, profile.ID)
	require.Equal(t, "ada@example.com", profile.Email)
	require.Equal(t, now, profile.CreatedAt)

	stored, err := repo.Get(context.Background(), profile.ID)
	require.NoError(t, err)
	require.NotEqual(t, []byte("s3cret!"), stored.PasscodeHash)
	require.NoError(t, bcrypt.CompareHashAndPassword(stored.PasscodeHash, []byte("s3cret!")))

	pending := outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventCustomerRegistered, pending[0].EventType)
	require.NotContains(t, string(pending[0].Payload), "ada@example.com")
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)

	reg := validRegistration()
	reg.PhoneNumber = "12345"
	reg.Passcode = "123"

	_, err := svc.Register(context.Background(), reg)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrPhoneInvalid)
	require.ErrorIs(t, err, domain.ErrPasscodeTooShort)
}

func TestRegisterDuplicateEmailAndPhone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	sameEmail := validRegistration()
	sameEmail.Email = "ADA@example.com"
	sameEmail.PhoneNumber = "5559999999"
	_, err = svc.Register(ctx, sameEmail)
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	samePhone := validRegistration()
	samePhone.Email = "other@example.com"
	_, err = svc.Register(ctx, samePhone)
	require.ErrorIs(t, err, domain.ErrPhoneAlreadyExists)
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	svc, _ := newTestService(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg := validRegistration()
			reg.PhoneNumber = fmt.Sprintf("55500000%02d", i)
			_, err := svc.Register(context.Background(), reg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrEmailAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, conflicts)
}

func TestLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	got, err := svc.Lookup(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	byEmail, err := svc.LookupByEmail(ctx, " ADA@EXAMPLE.COM ")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byPhone, err := svc.LookupByPhone(ctx, "5551234567")
	require.NoError(t, err)
	require.Equal(t, created.ID, byPhone.ID)

	_, err = svc.Lookup(ctx, created.ID+100)
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	require.False(t, domain.IsTransient(err))

	_, err = svc.Lookup(ctx, 0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

type brokenCustomers struct {
	domain.CustomerRepository
}

func (brokenCustomers) Get(context.Context, int64) (domain.Customer, error) {
	return domain.Customer{}, errors.New("connection reset")
}

func TestLookupStoreFailureIsTransient(t *testing.T) {
	svc := NewService(brokenCustomers{CustomerRepository: memory.NewCustomerRepository()}, nil)

	_, err := svc.Lookup(context.Background(), 3)
	require.True(t, domain.IsTransient(err))
	require.False(t, errors.Is(err, domain.ErrCustomerNotFound))
}
