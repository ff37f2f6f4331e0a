package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo domain.IdempotencyRepository, count int, ttlAt time.Time, prefix string) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := repo.CreateProcessing(context.Background(), fmt.Sprintf("%s-%d", prefix, i), "hash", ttlAt)
		require.NoError(t, err)
	}
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	seed(t, repo, 5, base.Add(-time.Minute), "expired")
	seed(t, repo, 2, base.Add(time.Hour), "alive")

	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, 5, deleted)

	_, err = repo.Get(context.Background(), "alive-0")
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), "expired-0")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestCleanupWorker_DeleteExpired_UsesClockByDefault(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	seed(t, repo, 3, base.Add(time.Minute), "key")
	manual := clock.NewManual(base)

	worker := NewCleanupWorker(repo, WithClock(manual))

	deleted, err := worker.DeleteExpired(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Zero(t, deleted)

	manual.Advance(2 * time.Minute)
	deleted, err = worker.DeleteExpired(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, deleted)
}

type failingRepo struct {
	domain.IdempotencyRepository
	mu    sync.Mutex
	calls int
}

func (f *failingRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 0, errors.New("boom")
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(&failingRepo{}, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), base)
	require.EqualError(t, err, "boom")
	require.Zero(t, deleted)
}

func TestCleanupWorker_DeleteExpired_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCleanupWorker(memory.NewIdempotencyRepository()).DeleteExpired(ctx, base)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &failingRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.calls >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop on context cancel")
	}
}

func TestCleanupWorker_Run_DisabledWithoutRepo(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewCleanupWorker(nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without repo must return immediately")
	}
}
