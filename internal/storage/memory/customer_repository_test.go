package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

func newCustomer(email, phone string) domain.Customer {
	return domain.Customer{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        email,
		PhoneNumber:  phone,
		Address:      "1 Navy Yard",
		City:         "Arlington",
		State:        "VA",
		ZipCode:      "22201",
		PasscodeHash: []byte("hash"),
	}
}

func TestCustomerRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCustomerRepository()

	created, err := repo.Create(ctx, newCustomer("Grace@Example.com", "5550000001"))
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, "grace@example.com", created.Email)
	require.False(t, created.CreatedAt.IsZero())

	byID, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "GRACE@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byPhone, err := repo.GetByPhone(ctx, "5550000001")
	require.NoError(t, err)
	require.Equal(t, created.ID, byPhone.ID)

	_, err = repo.Get(ctx, 404)
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	_, err = repo.GetByPhone(ctx, "5559999999")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCustomerRepository_UniqueEmailAndPhone(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCustomerRepository()

	_, err := repo.Create(ctx, newCustomer("grace@example.com", "5550000001"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newCustomer("grace@example.com", "5550000002"))
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	_, err = repo.Create(ctx, newCustomer("other@example.com", "5550000001"))
	require.ErrorIs(t, err, domain.ErrPhoneAlreadyExists)

	// Отклонённые вставки не должны занимать индексы.
	_, err = repo.Create(ctx, newCustomer("other@example.com", "5550000002"))
	require.NoError(t, err)
}

func TestCustomerRepository_ConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCustomerRepository()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, newCustomer("race@example.com", fmt.Sprintf("555000%04d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrEmailAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, attempts-1, conflicts)
}
