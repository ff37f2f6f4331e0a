package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	foodorderv1 "github.com/vladislavdragonenkov/foodorder/proto/foodorder/v1"
)

func TestNewOrderService_NilLogger(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil)
	if svc.logger == nil {
		t.Fatal("expected default logger")
	}
}

func TestRegisterCustomer_NotConfigured(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil)
	_, err := svc.RegisterCustomer(context.Background(), &foodorderv1.RegisterCustomerRequest{})
	require.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestNilRequests(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = svc.CancelOrder(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = svc.GetOrder(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = svc.ListCustomerOrders(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus_UsesClassification(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil)

	tests := []struct {
		err  error
		want codes.Code
	}{
		{domain.InvalidInput(domain.ErrQuantityInvalid), codes.InvalidArgument},
		{domain.ErrDishNotFound, codes.NotFound},
		{domain.ErrCancellationWindowExpired, codes.FailedPrecondition},
		{domain.ErrPhoneAlreadyExists, codes.AlreadyExists},
		{domain.Persistence("create order", errors.New("boom")), codes.Internal},
		{errors.New("unexpected"), codes.Internal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, status.Code(svc.toStatus(tt.err, "test")), tt.err.Error())
	}
}

func TestDecodeIdempotencyFailure_Branches(t *testing.T) {
	payload, err := json.Marshal(idempotencyErrorPayload{Code: int32(codes.NotFound), Message: "Order not found"})
	require.NoError(t, err)

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: payload})
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Equal(t, "Order not found", status.Convert(err).Message())

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: []byte("{broken"), HTTPStatus: int(codes.Aborted)})
	require.Equal(t, codes.Aborted, status.Code(err))

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{})
	require.Equal(t, codes.Internal, status.Code(err))

	okPayload, err := json.Marshal(idempotencyErrorPayload{Code: int32(codes.OK)})
	require.NoError(t, err)
	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: okPayload})
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestReplayIdempotency_ProcessingAndUnknown(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, nil)

	_, err := replayIdempotency[foodorderv1.PlaceOrderResponse](svc, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusProcessing})
	require.Equal(t, codes.Aborted, status.Code(err))

	_, err = replayIdempotency[foodorderv1.PlaceOrderResponse](svc, domain.ErrIdempotencyKeyAlreadyExists,
		domain.IdempotencyRecord{Status: domain.IdempotencyStatusDone})
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = replayIdempotency[foodorderv1.PlaceOrderResponse](svc, errors.New("db down"), domain.IdempotencyRecord{})
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestUtilityHelpers(t *testing.T) {
	_, ok := readIdempotencyKey(context.Background())
	require.False(t, ok)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  key-1 "))
	key, ok := readIdempotencyKey(ctx)
	require.True(t, ok)
	require.Equal(t, "key-1", key)

	h1, err := buildIdempotencyRequestHash("/m", &foodorderv1.CancelOrderRequest{OrderId: 1})
	require.NoError(t, err)
	h2, err := buildIdempotencyRequestHash("/m", &foodorderv1.CancelOrderRequest{OrderId: 2})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	_, err = buildIdempotencyRequestHash("/m", nil)
	require.Error(t, err)

	_, ok = grpcCodeFromInt(-1)
	require.False(t, ok)
	_, ok = grpcCodeFromInt(100)
	require.False(t, ok)

	require.Equal(t, foodorderv1.OrderStatusUnspecified, toProtoStatus("unknown"))

	placed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := toProtoOrder(domain.OrderSummary{OrderID: 1, CustomerID: 3, DishID: 7, Quantity: 2, Status: domain.OrderStatusActive, PlacedAt: placed})
	require.Equal(t, "2024-05-01T12:00:00Z", order.PlacedAt)
	require.Equal(t, foodorderv1.OrderStatusActive, order.Status)
}

func TestBuildIdempotencyRequestHash_ExcludesPasscode(t *testing.T) {
	req := &foodorderv1.RegisterCustomerRequest{Email: "ada@example.com", PhoneNumber: "5551234567", Passcode: "s3cret!"}
	withSecret, err := buildIdempotencyRequestHash("/register", req)
	require.NoError(t, err)

	withoutSecret, err := buildIdempotencyRequestHash("/register", &foodorderv1.RegisterCustomerRequest{Email: "ada@example.com", PhoneNumber: "5551234567"})
	require.NoError(t, err)
	require.Equal(t, withoutSecret, withSecret)
	require.Equal(t, "s3cret!", req.Passcode, "caller's request must not be modified")

	otherEmail, err := buildIdempotencyRequestHash("/register", &foodorderv1.RegisterCustomerRequest{Email: "grace@example.com", PhoneNumber: "5551234567"})
	require.NoError(t, err)
	require.NotEqual(t, withSecret, otherEmail)
}
