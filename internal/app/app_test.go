package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/foodorder/internal/catalog"
	"github.com/vladislavdragonenkov/foodorder/internal/discovery"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	foodorderv1 "github.com/vladislavdragonenkov/foodorder/proto/foodorder/v1"
)

const testMenu = `dishes:
  - id: 7
    category: pizza
    name: Margherita
    unit_price: 650
    description: tomato, mozzarella, basil
  - id: 8
    category: pizza
    name: Diavola
    unit_price: 720
    description: spicy salami
`

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("test", "app")
}

func writeMenu(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testMenu), 0o600))
	return path
}

func testCatalogConfig(menu string) CatalogConfig {
	return CatalogConfig{
		HTTPAddr:        "127.0.0.1:0",
		MetricsAddr:     "127.0.0.1:0",
		LogLevel:        "info",
		ShutdownTimeout: 2 * time.Second,
		StorageConfig:   StorageConfig{Driver: StorageDriverMemory},
		MenuFile:        menu,
		DiscoveryPrefix: "discovery",
		RegistrationTTL: 3 * time.Second,
	}
}

func testOrderConfig(catalogAddr string) Config {
	return Config{
		GRPCAddr:                    "127.0.0.1:0",
		HTTPAddr:                    "127.0.0.1:0",
		MetricsAddr:                 "127.0.0.1:0",
		LogLevel:                    "info",
		ShutdownTimeout:             2 * time.Second,
		StorageConfig:               StorageConfig{Driver: StorageDriverMemory},
		FoodServiceAddr:             catalogAddr,
		CatalogTimeout:              time.Second,
		CatalogRetries:              1,
		DiscoveryPrefix:             "discovery",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             10,
		OutboxMaxAttempts:           1,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 10,
	}
}

// startServing запускает serve в фоне и возвращает функцию остановки, ожидающую ошибку serve.
func startServing(t *testing.T, serve func(context.Context) error) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx) }()

	stopped := false
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop in time")
			return nil
		}
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func request(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestInitRepositories(t *testing.T) {
	repos, err := initRepositories(context.Background(), StorageConfig{Driver: StorageDriverMemory}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, repos.orders)
	require.NotNil(t, repos.outbox)
	require.NoError(t, repos.ping(context.Background()))
	repos.close(testLogger())

	_, err = initRepositories(context.Background(), StorageConfig{Driver: "sqlite"}, testLogger())
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestBuildResolver(t *testing.T) {
	_, err := buildResolver("", nil, testLogger())
	require.Error(t, err)

	resolver, err := buildResolver("localhost:8081", nil, testLogger())
	require.NoError(t, err)
	addr, err := resolver.Resolve(context.Background(), catalog.ServiceName)
	require.NoError(t, err)
	require.Equal(t, "localhost:8081", addr)

	mr := miniredis.RunT(t)
	client, err := openRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	registry := discovery.NewRedisRegistry(client, "discovery")
	require.NoError(t, registry.Register(context.Background(), catalog.ServiceName, "catalog-1:8081", time.Minute))

	resolver, err = buildResolver("", registry, testLogger())
	require.NoError(t, err)
	addr, err = resolver.Resolve(context.Background(), catalog.ServiceName)
	require.NoError(t, err)
	require.Equal(t, "catalog-1:8081", addr)

	_, err = resolver.Resolve(context.Background(), "unknown-service")
	require.True(t, errors.Is(err, discovery.ErrServiceNotFound), "unexpected error: %v", err)
}

func TestOpenRedis(t *testing.T) {
	client, err := openRedis(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = openRedis(context.Background(), addr)
	require.Error(t, err)
}

func TestOrderAndCatalogServices(t *testing.T) {
	catalogSrv, err := newCatalogServer(context.Background(), testCatalogConfig(writeMenu(t)), testLogger())
	require.NoError(t, err)
	catalogAddr := catalogSrv.apiListener.Addr().String()
	startServing(t, catalogSrv.serve)

	orderSrv, err := newOrderServer(context.Background(), testOrderConfig(catalogAddr), testLogger())
	require.NoError(t, err)
	apiURL := "http://" + orderSrv.apiListener.Addr().String()
	opsURL := "http://" + orderSrv.opsListener.Addr().String()
	grpcAddr := orderSrv.grpcListener.Addr().String()
	stopOrders := startServing(t, orderSrv.serve)

	code, body := request(t, http.MethodGet, apiURL+"/menu/pizza", "")
	require.Equal(t, http.StatusOK, code, string(body))
	var menu []domain.Dish
	require.NoError(t, json.Unmarshal(body, &menu))
	require.Len(t, menu, 2)

	code, body = request(t, http.MethodPost, apiURL+"/customer",
		`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","phoneNumber":"5551234567",
"address":"12 Analytical St","city":"London","state":"LDN","zipCode":"10001","passcode":"s3cret!"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	require.NotContains(t, string(body), "s3cret!")
	var customer struct {
		CustomerID int64 `json:"customerId"`
	}
	require.NoError(t, json.Unmarshal(body, &customer))

	code, body = request(t, http.MethodPost, apiURL+"/order",
		`{"dishId":7,"customerId":`+jsonInt(customer.CustomerID)+`,"quantity":2}`)
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = request(t, http.MethodPost, apiURL+"/order",
		`{"dishId":999,"customerId":`+jsonInt(customer.CustomerID)+`,"quantity":1}`)
	require.Equal(t, http.StatusNotFound, code, string(body))
	require.Contains(t, string(body), "dish_not_found")

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	list, err := foodorderv1.NewOrderServiceClient(conn).ListCustomerOrders(ctx,
		&foodorderv1.ListCustomerOrdersRequest{CustomerId: customer.CustomerID})
	require.NoError(t, err)
	require.Len(t, list.GetOrders(), 1)
	require.Equal(t, int64(7), list.GetOrders()[0].DishId)

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: foodorderv1.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())

	code, body = request(t, http.MethodGet, opsURL+"/healthz", "")
	require.Equal(t, http.StatusOK, code, string(body))
	require.Contains(t, string(body), `"status":"healthy"`)

	code, _ = request(t, http.MethodGet, opsURL+"/readyz", "")
	require.Equal(t, http.StatusOK, code)

	code, body = request(t, http.MethodGet, opsURL+"/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "foodorder_orders_placed_total 1")
	require.Contains(t, string(body), "grpc_server_handled_total")
	require.Contains(t, string(body), "go_goroutines")

	require.ErrorIs(t, stopOrders(), context.Canceled)

	_, err = http.Get(apiURL + "/menu/pizza")
	require.Error(t, err, "api must be closed after shutdown")
}

func TestCatalogRegistersInDiscovery(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testCatalogConfig(writeMenu(t))
	cfg.RedisAddr = mr.Addr()
	cfg.AdvertiseAddr = "catalog.test:8081"

	srv, err := newCatalogServer(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	stop := startServing(t, srv.serve)

	client, err := openRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	registry := discovery.NewRedisRegistry(client, cfg.DiscoveryPrefix)

	require.Eventually(t, func() bool {
		addr, err := registry.Resolve(context.Background(), catalog.ServiceName)
		return err == nil && addr == cfg.AdvertiseAddr
	}, 3*time.Second, 20*time.Millisecond)

	require.ErrorIs(t, stop(), context.Canceled)

	instances, err := registry.Instances(context.Background(), catalog.ServiceName)
	require.NoError(t, err)
	require.Empty(t, instances)
}

func TestNewOrderServerFailsWithoutCatalogLocation(t *testing.T) {
	_, err := newOrderServer(context.Background(), testOrderConfig(""), testLogger())
	require.ErrorContains(t, err, "no way to locate")
}

func TestRunCatalogRejectsMissingMenu(t *testing.T) {
	err := RunCatalog(context.Background(), testCatalogConfig(filepath.Join(t.TempDir(), "absent.yaml")), testLogger())
	require.ErrorContains(t, err, "open menu")
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
