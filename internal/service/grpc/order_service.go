package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/errclass"
	"github.com/vladislavdragonenkov/foodorder/internal/service/ordering"
	foodorderv1 "github.com/vladislavdragonenkov/foodorder/proto/foodorder/v1"
)

// Ordering: операции оркестратора, которые публикует gRPC API.
type Ordering interface {
	PlaceOrder(ctx context.Context, req ordering.PlaceOrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (ordering.CancelResult, error)
	GetOrder(ctx context.Context, orderID int64) (ordering.OrderDetails, error)
	ListOrdersForCustomer(ctx context.Context, customerID int64) ([]domain.OrderSummary, error)
}

// CustomerRegistrar регистрирует клиентов.
type CustomerRegistrar interface {
	Register(ctx context.Context, reg domain.CustomerRegistration) (domain.CustomerProfile, error)
}

// OrderService реализует foodorder.v1.OrderService поверх оркестратора заказов.
type OrderService struct {
	foodorderv1.UnimplementedOrderServiceServer

	orders    Ordering
	customers CustomerRegistrar
	idemRepo  domain.IdempotencyRepository
	clock     clock.Clock
	logger    *log.Entry
}

const (
	idempotencyKeyHeader = "idempotency-key"
	idempotencyTTL       = 24 * time.Hour
)

// NewOrderService конструирует сервис с зависимостями. idemRepo может быть nil:
// тогда повторы по idempotency-key не кэшируются.
func NewOrderService(
	orders Ordering,
	customers CustomerRegistrar,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-order-service")
	}
	return &OrderService{
		orders:    orders,
		customers: customers,
		idemRepo:  idemRepo,
		clock:     clock.NewSystem(),
		logger:    logger,
	}
}

// PlaceOrder оформляет заказ.
func (s *OrderService) PlaceOrder(ctx context.Context, req *foodorderv1.PlaceOrderRequest) (*foodorderv1.PlaceOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return withIdempotency(s, ctx, foodorderv1.OrderService_PlaceOrder_FullMethodName, req,
		func(ctx context.Context) (*foodorderv1.PlaceOrderResponse, error) {
			order, err := s.orders.PlaceOrder(ctx, ordering.PlaceOrderRequest{
				DishID:     req.GetDishId(),
				CustomerID: req.GetCustomerId(),
				Quantity:   req.GetQuantity(),
			})
			if err != nil {
				return nil, err
			}
			return &foodorderv1.PlaceOrderResponse{Order: toProtoOrder(order.Summary())}, nil
		},
	)
}

// CancelOrder отменяет заказ в пределах окна отмены.
func (s *OrderService) CancelOrder(ctx context.Context, req *foodorderv1.CancelOrderRequest) (*foodorderv1.CancelOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return withIdempotency(s, ctx, foodorderv1.OrderService_CancelOrder_FullMethodName, req,
		func(ctx context.Context) (*foodorderv1.CancelOrderResponse, error) {
			result, err := s.orders.CancelOrder(ctx, req.GetOrderId())
			if err != nil {
				return nil, err
			}
			return &foodorderv1.CancelOrderResponse{
				Order:        toProtoOrder(result.Order),
				Transitioned: result.Transitioned,
			}, nil
		},
	)
}

// GetOrder возвращает состояние заказа и таймлайн событий.
func (s *OrderService) GetOrder(ctx context.Context, req *foodorderv1.GetOrderRequest) (*foodorderv1.GetOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	details, err := s.orders.GetOrder(ctx, req.GetOrderId())
	if err != nil {
		return nil, s.toStatus(err, "GetOrder")
	}

	timeline := make([]*foodorderv1.TimelineEvent, 0, len(details.Timeline))
	for _, event := range details.Timeline {
		timeline = append(timeline, &foodorderv1.TimelineEvent{
			Type:     event.Type,
			Reason:   event.Reason,
			UnixTime: event.Occurred.Unix(),
		})
	}

	return &foodorderv1.GetOrderResponse{
		Order:    toProtoOrder(details.Order),
		Timeline: timeline,
	}, nil
}

// ListCustomerOrders возвращает заказы клиента.
func (s *OrderService) ListCustomerOrders(ctx context.Context, req *foodorderv1.ListCustomerOrdersRequest) (*foodorderv1.ListCustomerOrdersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	summaries, err := s.orders.ListOrdersForCustomer(ctx, req.GetCustomerId())
	if err != nil {
		return nil, s.toStatus(err, "ListCustomerOrders")
	}

	result := make([]*foodorderv1.Order, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, toProtoOrder(summary))
	}
	return &foodorderv1.ListCustomerOrdersResponse{Orders: result}, nil
}

// RegisterCustomer регистрирует клиента. Пароль в ответ не попадает.
func (s *OrderService) RegisterCustomer(ctx context.Context, req *foodorderv1.RegisterCustomerRequest) (*foodorderv1.RegisterCustomerResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if s.customers == nil {
		return nil, status.Error(codes.Unimplemented, "customer registration is not configured")
	}

	return withIdempotency(s, ctx, foodorderv1.OrderService_RegisterCustomer_FullMethodName, req,
		func(ctx context.Context) (*foodorderv1.RegisterCustomerResponse, error) {
			profile, err := s.customers.Register(ctx, domain.CustomerRegistration{
				FirstName:   req.FirstName,
				LastName:    req.LastName,
				Email:       req.Email,
				PhoneNumber: req.PhoneNumber,
				Address:     req.Address,
				City:        req.City,
				State:       req.State,
				ZipCode:     req.ZipCode,
				Passcode:    req.Passcode,
			})
			if err != nil {
				return nil, err
			}
			return &foodorderv1.RegisterCustomerResponse{Customer: toProtoCustomer(profile)}, nil
		},
	)
}

// toStatus переводит ошибку приложения в gRPC-статус через общую классификацию.
func (s *OrderService) toStatus(err error, operation string) error {
	class, _ := errclass.Classify(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      class.Code,
		"transient": class.Transient,
	})
	if class.GRPCCode == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return status.Error(class.GRPCCode, class.Message)
}

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency кэширует ответ по ключу из метаданных idempotency-key.
// Без ключа запрос выполняется как обычно. handler возвращает ошибки приложения,
// в gRPC-статус их переводит withIdempotency.
// Кэшируются только окончательные исходы. Если сбой временный (недоступен каталог
// или хранилище), ключ освобождается и повтор с тем же ключом выполнит запрос заново.
func withIdempotency[T any](
	s *OrderService,
	ctx context.Context,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	operation := path.Base(method)
	run := func(ctx context.Context) (*T, error) {
		resp, err := handler(ctx)
		if err != nil {
			return nil, s.toStatus(err, operation)
		}
		return resp, nil
	}

	if s.idemRepo == nil {
		return run(ctx)
	}
	idemKey, ok := readIdempotencyKey(ctx)
	if !ok {
		return run(ctx)
	}

	reqHash, err := buildIdempotencyRequestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, idemKey, reqHash, s.clock.Now().Add(idempotencyTTL))
	if err != nil {
		return replayIdempotency[T](s, err, record)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		statusErr := s.toStatus(runErr, operation)
		if class, _ := errclass.Classify(runErr); class.Retryable() {
			s.releaseIdempotency(ctx, idemKey, class)
		} else {
			s.cacheIdempotencyFailure(ctx, idemKey, statusErr)
		}
		return nil, statusErr
	}

	if cacheErr := s.cacheIdempotencySuccess(ctx, idemKey, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
	}
	return resp, nil
}

func replayIdempotency[T any](s *OrderService, createErr error, record domain.IdempotencyRecord) (*T, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return nil, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := new(T)
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return nil, decodeIdempotencyFailure(record)
		default:
			return nil, status.Error(codes.Internal, "unknown idempotency record status")
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func (s *OrderService) cacheIdempotencySuccess(ctx context.Context, key string, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(ctx, key, data, int(codes.OK))
}

func (s *OrderService) releaseIdempotency(ctx context.Context, key string, class errclass.Class) {
	entry := s.logger.WithFields(log.Fields{"idempotency_key": key, "code": class.Code})
	if err := s.idemRepo.Release(ctx, key); err != nil {
		entry.WithError(err).Warn("failed to release idempotency key after retryable failure")
		return
	}
	entry.Debug("idempotency key released after retryable failure")
}

func (s *OrderService) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(ctx, key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCodeFromInt(int(payload.Code)); ok {
				if code == codes.OK {
					code = codes.Internal
				}
				if payload.Message == "" {
					payload.Message = "previous request with the same idempotency key failed"
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if record.HTTPStatus > 0 {
		if code, ok := grpcCodeFromInt(record.HTTPStatus); ok && code != codes.OK {
			return status.Error(code, "previous request with the same idempotency key failed")
		}
	}

	return status.Error(codes.Internal, "previous request with the same idempotency key failed")
}

func grpcCodeFromInt(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // value is range-checked above.
}

func readIdempotencyKey(ctx context.Context) (string, bool) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), true
		}
	}
	return "", false
}

// buildIdempotencyRequestHash считает отпечаток запроса. Пароль в отпечаток не входит,
// поэтому в idempotency_keys не попадает ничего, производного от него.
func buildIdempotencyRequestHash(method string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	if reg, ok := req.(*foodorderv1.RegisterCustomerRequest); ok && reg != nil {
		redacted := *reg
		redacted.Passcode = ""
		req = &redacted
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(method)+1+len(data))
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func toProtoOrder(summary domain.OrderSummary) *foodorderv1.Order {
	return &foodorderv1.Order{
		Id:         summary.OrderID,
		DishId:     summary.DishID,
		CustomerId: summary.CustomerID,
		Quantity:   summary.Quantity,
		Status:     toProtoStatus(summary.Status),
		PlacedAt:   summary.PlacedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toProtoStatus(s domain.OrderStatus) foodorderv1.OrderStatus {
	switch s {
	case domain.OrderStatusActive:
		return foodorderv1.OrderStatusActive
	case domain.OrderStatusCancelled:
		return foodorderv1.OrderStatusCancelled
	default:
		return foodorderv1.OrderStatusUnspecified
	}
}

func toProtoCustomer(p domain.CustomerProfile) *foodorderv1.Customer {
	return &foodorderv1.Customer{
		Id:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		ZipCode:     p.ZipCode,
	}
}

var _ foodorderv1.OrderServiceServer = (*OrderService)(nil)
