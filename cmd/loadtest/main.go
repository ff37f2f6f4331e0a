// Команда loadtest гоняет сценарии регистрации и заказа через gRPC API и печатает сводку задержек.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	foodorderv1 "github.com/vladislavdragonenkov/foodorder/proto/foodorder/v1"
)

const (
	idempotencyHeader = "idempotency-key"
	phoneRange        = 9_000_000_000
	phoneBase         = 1_000_000_000
)

type loadMode string

const (
	modePlace       loadMode = "place"
	modePlaceCancel loadMode = "place-cancel"
	modePlaceList   loadMode = "place-list"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	dishID      int64
	quantity    int
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m, 15m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-cancel | place-list")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for place mode (0..100)")
	fs.Int64Var(&cfg.dishID, "dish-id", 1, "dish to order; must exist in the catalog")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity per order")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.dishID <= 0 {
		return cfg, errors.New("dish-id must be > 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if cfg.cancelRate < 0 || cfg.cancelRate > 100 {
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlaceCancel:
		return modePlaceCancel, nil
	case modePlaceList:
		return modePlaceList, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// runID отличает прогоны друг от друга: из него строятся email, телефоны и idempotency-ключи.
type runID struct {
	tag       string
	phoneSeed int64
}

func newRunID() runID {
	id := uuid.New()
	return runID{
		tag:       strings.ReplaceAll(id.String(), "-", "")[:12],
		phoneSeed: int64(binary.BigEndian.Uint32(id[:4])) * 1000,
	}
}

// phoneFor выдаёт десятизначный номер без ведущего нуля, уникальный в пределах прогона.
func (r runID) phoneFor(index int) string {
	return strconv.FormatInt(phoneBase+(r.phoneSeed+int64(index))%phoneRange, 10)
}

func (r runID) key(op string, index int) string {
	return fmt.Sprintf("lt-%s-%s-%d", op, r.tag, index)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]foodorderv1.OrderServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, foodorderv1.NewOrderServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := runLoad(clients, cfg, newRunID())
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runLoad раздаёт сценарии воркерам и собирает отчёт.
func runLoad(clients []foodorderv1.OrderServiceClient, cfg config, run runID) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli foodorderv1.OrderServiceClient) {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(cli, cfg, id, run, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(client)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	return result
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario регистрирует клиента, оформляет заказ и по режиму отменяет его или читает историю.
func runScenario(
	client foodorderv1.OrderServiceClient,
	cfg config,
	index int,
	run runID,
	col *collector,
) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), scenarioCode)
	}()

	registerReq := &foodorderv1.RegisterCustomerRequest{
		FirstName:   "Load",
		LastName:    fmt.Sprintf("Runner%d", index),
		Email:       fmt.Sprintf("load-%s-%d@example.com", run.tag, index),
		PhoneNumber: run.phoneFor(index),
		Address:     "1 Benchmark Way",
		City:        "Loadville",
		State:       "LT",
		ZipCode:     "00001",
		Passcode:    "load-pass",
	}
	customer, err := callRegisterCustomer(client, cfg.timeout, registerReq, run.key("register", index), col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	customerID := customer.GetCustomer().GetId()
	if customerID == 0 {
		scenarioCode = codes.Internal
		return errors.New("register response returned empty customer id")
	}

	placeReq := &foodorderv1.PlaceOrderRequest{
		DishId:     cfg.dishID,
		CustomerId: customerID,
		Quantity:   int32(cfg.quantity),
	}
	placed, err := callPlaceOrder(client, cfg.timeout, placeReq, run.key("place", index), col)
	if err != nil {
		scenarioCode = grpcCode(err)
		return err
	}
	orderID := placed.GetOrder().GetId()
	if orderID == 0 {
		scenarioCode = codes.Internal
		return errors.New("place response returned empty order id")
	}

	if cfg.mode == modePlaceCancel || (cfg.mode == modePlace && shouldCancelScenario(index, cfg.cancelRate)) {
		if err := callCancelOrder(client, cfg.timeout, orderID, run.key("cancel", index), col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
	}

	if cfg.mode == modePlaceList {
		if err := callListCustomerOrders(client, cfg.timeout, customerID, col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
	}

	return nil
}

func withTimeoutAndKey(timeout time.Duration, key string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)
	}
	return ctx, cancel
}

func callRegisterCustomer(
	client foodorderv1.OrderServiceClient,
	timeout time.Duration,
	req *foodorderv1.RegisterCustomerRequest,
	key string,
	col *collector,
) (*foodorderv1.RegisterCustomerResponse, error) {
	start := time.Now()
	ctx, cancel := withTimeoutAndKey(timeout, key)
	defer cancel()

	resp, err := client.RegisterCustomer(ctx, req)
	col.record("RegisterCustomer", time.Since(start), grpcCode(err))
	return resp, err
}

func callPlaceOrder(
	client foodorderv1.OrderServiceClient,
	timeout time.Duration,
	req *foodorderv1.PlaceOrderRequest,
	key string,
	col *collector,
) (*foodorderv1.PlaceOrderResponse, error) {
	start := time.Now()
	ctx, cancel := withTimeoutAndKey(timeout, key)
	defer cancel()

	resp, err := client.PlaceOrder(ctx, req)
	col.record("PlaceOrder", time.Since(start), grpcCode(err))
	return resp, err
}

func callCancelOrder(
	client foodorderv1.OrderServiceClient,
	timeout time.Duration,
	orderID int64,
	key string,
	col *collector,
) error {
	start := time.Now()
	ctx, cancel := withTimeoutAndKey(timeout, key)
	defer cancel()

	_, err := client.CancelOrder(ctx, &foodorderv1.CancelOrderRequest{OrderId: orderID})
	col.record("CancelOrder", time.Since(start), grpcCode(err))
	return err
}

func callListCustomerOrders(
	client foodorderv1.OrderServiceClient,
	timeout time.Duration,
	customerID int64,
	col *collector,
) error {
	start := time.Now()
	ctx, cancel := withTimeoutAndKey(timeout, "")
	defer cancel()

	_, err := client.ListCustomerOrders(ctx, &foodorderv1.ListCustomerOrdersRequest{CustomerId: customerID})
	col.record("ListCustomerOrders", time.Since(start), grpcCode(err))
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
