package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client, ""), mr
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]string{"food-service": " http://localhost:9091 "})

	addr, err := r.Resolve(context.Background(), "food-service")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9091", addr)

	_, err = r.Resolve(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestChainFallsThrough(t *testing.T) {
	empty := NewStaticResolver(nil)
	backup := NewStaticResolver(map[string]string{"food-service": "http://backup"})

	addr, err := Chain{empty, nil, backup}.Resolve(context.Background(), "food-service")
	require.NoError(t, err)
	require.Equal(t, "http://backup", addr)

	_, err = Chain{empty}.Resolve(context.Background(), "food-service")
	require.ErrorIs(t, err, ErrServiceNotFound)
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, string) (string, error) { return "", f.err }

func TestChainReportsInfrastructureErrors(t *testing.T) {
	boom := errors.New("redis down")
	_, err := Chain{failingResolver{err: boom}, NewStaticResolver(nil)}.Resolve(context.Background(), "food-service")
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, ErrServiceNotFound))
}

func TestRedisRegistryRegisterResolve(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Resolve(ctx, "food-service")
	require.ErrorIs(t, err, ErrServiceNotFound)

	require.NoError(t, reg.Register(ctx, "food-service", "http://10.0.0.2:9091", time.Minute))
	require.NoError(t, reg.Register(ctx, "food-service", "http://10.0.0.1:9091", time.Minute))
	require.NoError(t, reg.Register(ctx, "customer-service", "http://10.0.0.9:8080", time.Minute))

	instances, err := reg.Instances(ctx, "food-service")
	require.NoError(t, err)
	require.Equal(t, []string{"http://10.0.0.1:9091", "http://10.0.0.2:9091"}, instances)

	// Круговой выбор чередует экземпляры.
	first, err := reg.Resolve(ctx, "food-service")
	require.NoError(t, err)
	second, err := reg.Resolve(ctx, "food-service")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, reg.Deregister(ctx, "food-service", "http://10.0.0.1:9091"))
	instances, err = reg.Instances(ctx, "food-service")
	require.NoError(t, err)
	require.Equal(t, []string{"http://10.0.0.2:9091"}, instances)
}

func TestRedisRegistryExpiresInstances(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "food-service", "http://10.0.0.1:9091", 5*time.Second))
	mr.FastForward(6 * time.Second)

	_, err := reg.Resolve(ctx, "food-service")
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestRedisRegistryValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.Error(t, reg.Register(context.Background(), "", "addr", time.Second))
	require.NoError(t, reg.Ping(context.Background()))
}

type recordingRegistrar struct {
	mu           sync.Mutex
	registered   int
	deregistered int
}

func (r *recordingRegistrar) Register(context.Context, string, string, time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered++
	return nil
}

func (r *recordingRegistrar) Deregister(context.Context, string, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregistered++
	return nil
}

func (r *recordingRegistrar) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered, r.deregistered
}

func TestHeartbeatRegistersUntilCancelled(t *testing.T) {
	rec := &recordingRegistrar{}
	hb := NewHeartbeat(rec, "food-service", "http://localhost:9091", 30*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		registered, _ := rec.counts()
		return registered >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}

	_, deregistered := rec.counts()
	require.Equal(t, 1, deregistered)
}

func TestHeartbeatAgainstRedis(t *testing.T) {
	reg, _ := newTestRegistry(t)
	hb := NewHeartbeat(reg, "food-service", "http://localhost:9091", time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		addr, err := reg.Resolve(context.Background(), "food-service")
		return err == nil && addr == "http://localhost:9091"
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	_, err := reg.Resolve(context.Background(), "food-service")
	require.ErrorIs(t, err, ErrServiceNotFound)
}
