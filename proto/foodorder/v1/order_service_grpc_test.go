package foodorderv1

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeClientConn struct {
	invoke func(context.Context, string, any, any, ...grpc.CallOption) error
}

func (f *fakeClientConn) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	if f.invoke == nil {
		return errors.New("unexpected Invoke call")
	}
	return f.invoke(ctx, method, args, reply, opts...)
}

func (f *fakeClientConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

type grpcTestOrderService struct {
	UnimplementedOrderServiceServer
}

func (s *grpcTestOrderService) PlaceOrder(_ context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return &PlaceOrderResponse{Order: &Order{
		Id:         1,
		DishId:     req.GetDishId(),
		CustomerId: req.GetCustomerId(),
		Quantity:   req.GetQuantity(),
		Status:     OrderStatusActive,
	}}, nil
}

func (s *grpcTestOrderService) CancelOrder(_ context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	if req.GetOrderId() == 99 {
		return nil, status.Error(codes.NotFound, "Order not found")
	}
	return &CancelOrderResponse{Order: &Order{Id: req.GetOrderId(), Status: OrderStatusCancelled}, Transitioned: true}, nil
}

func TestOrderServiceClientUsesJSONSubtype(t *testing.T) {
	methods := map[string]int{}
	conn := &fakeClientConn{
		invoke: func(_ context.Context, method string, _ any, reply any, opts ...grpc.CallOption) error {
			methods[method]++
			found := false
			for _, opt := range opts {
				if sub, ok := opt.(grpc.ContentSubtypeCallOption); ok && sub.ContentSubtype == CodecName {
					found = true
				}
			}
			if !found {
				t.Fatalf("json content subtype is not set for %s", method)
			}
			switch out := reply.(type) {
			case *PlaceOrderResponse:
				out.Order = &Order{Id: 1}
			case *CancelOrderResponse:
				out.Transitioned = true
			case *GetOrderResponse:
				out.Order = &Order{Id: 1}
			case *ListCustomerOrdersResponse:
				out.Orders = []*Order{{Id: 1}}
			case *RegisterCustomerResponse:
				out.Customer = &Customer{Id: 3}
			default:
				t.Fatalf("unexpected reply type: %T", out)
			}
			return nil
		},
	}

	client := NewOrderServiceClient(conn)
	ctx := context.Background()

	if resp, err := client.PlaceOrder(ctx, &PlaceOrderRequest{DishId: 7, CustomerId: 3, Quantity: 2}); err != nil || resp.GetOrder().GetId() != 1 {
		t.Fatalf("PlaceOrder: resp=%v err=%v", resp, err)
	}
	if resp, err := client.CancelOrder(ctx, &CancelOrderRequest{OrderId: 1}); err != nil || !resp.Transitioned {
		t.Fatalf("CancelOrder: resp=%v err=%v", resp, err)
	}
	if _, err := client.GetOrder(ctx, &GetOrderRequest{OrderId: 1}); err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if resp, err := client.ListCustomerOrders(ctx, &ListCustomerOrdersRequest{CustomerId: 3}); err != nil || len(resp.GetOrders()) != 1 {
		t.Fatalf("ListCustomerOrders: resp=%v err=%v", resp, err)
	}
	if resp, err := client.RegisterCustomer(ctx, &RegisterCustomerRequest{Email: "a@b.c"}); err != nil || resp.GetCustomer().GetId() != 3 {
		t.Fatalf("RegisterCustomer: resp=%v err=%v", resp, err)
	}

	if len(methods) != 5 {
		t.Fatalf("expected 5 distinct methods, got %v", methods)
	}
}

func TestOrderServiceClientPropagatesErrors(t *testing.T) {
	conn := &fakeClientConn{
		invoke: func(context.Context, string, any, any, ...grpc.CallOption) error {
			return status.Error(codes.Unavailable, "down")
		},
	}
	client := NewOrderServiceClient(conn)

	if _, err := client.PlaceOrder(context.Background(), &PlaceOrderRequest{}); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestOrderServiceOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderServiceServer(srv, &grpcTestOrderService{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client := NewOrderServiceClient(conn)
	ctx := context.Background()

	placed, err := client.PlaceOrder(ctx, &PlaceOrderRequest{DishId: 7, CustomerId: 3, Quantity: 2})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if got := placed.GetOrder(); got.DishId != 7 || got.CustomerId != 3 || got.Quantity != 2 || got.Status != OrderStatusActive {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := client.CancelOrder(ctx, &CancelOrderRequest{OrderId: 99}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if _, err := client.GetOrder(ctx, &GetOrderRequest{OrderId: 1}); status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}

func TestCodec(t *testing.T) {
	codec := Codec{}
	if codec.Name() != CodecName {
		t.Fatalf("unexpected codec name %q", codec.Name())
	}

	data, err := codec.Marshal(&CancelOrderResponse{Order: &Order{Id: 5, Status: OrderStatusCancelled}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out CancelOrderResponse
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.GetOrder().GetId() != 5 || out.GetOrder().GetStatus() != OrderStatusCancelled {
		t.Fatalf("unexpected decoded message: %+v", out.Order)
	}

	if err := codec.Unmarshal(nil, &out); err != nil {
		t.Fatalf("empty payload must decode to zero message: %v", err)
	}
	if err := codec.Unmarshal([]byte("{"), &out); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNilGetters(t *testing.T) {
	var order *Order
	if order.GetId() != 0 || order.GetStatus() != OrderStatusUnspecified {
		t.Fatal("nil order getters must return zero values")
	}
	var resp *GetOrderResponse
	if resp.GetOrder() != nil || resp.GetTimeline() != nil {
		t.Fatal("nil response getters must return nil")
	}
}
