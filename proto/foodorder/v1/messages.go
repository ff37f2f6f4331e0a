// Package foodorderv1 описывает gRPC API сервиса заказов foodorder.v1.OrderService.
// Сообщения передаются в JSON (см. codec.go).
package foodorderv1

// OrderStatus: статус заказа в API.
type OrderStatus string

const (
	OrderStatusUnspecified OrderStatus = ""
	OrderStatusActive      OrderStatus = "ACTIVE"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
)

// Order: заказ в ответах API. PlacedAt передаётся в RFC 3339.
type Order struct {
	Id         int64       `json:"id"`
	DishId     int64       `json:"dish_id"`
	CustomerId int64       `json:"customer_id"`
	Quantity   int32       `json:"quantity"`
	Status     OrderStatus `json:"status"`
	PlacedAt   string      `json:"placed_at"`
}

func (x *Order) GetId() int64 {
	if x == nil {
		return 0
	}
	return x.Id
}

func (x *Order) GetStatus() OrderStatus {
	if x == nil {
		return OrderStatusUnspecified
	}
	return x.Status
}

// TimelineEvent: событие жизненного цикла заказа.
type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

// Customer: профиль клиента. Пароль в API не возвращается.
type Customer struct {
	Id          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
}

func (x *Customer) GetId() int64 {
	if x == nil {
		return 0
	}
	return x.Id
}

type PlaceOrderRequest struct {
	DishId     int64 `json:"dish_id"`
	CustomerId int64 `json:"customer_id"`
	Quantity   int32 `json:"quantity"`
}

func (x *PlaceOrderRequest) GetDishId() int64 {
	if x == nil {
		return 0
	}
	return x.DishId
}

func (x *PlaceOrderRequest) GetCustomerId() int64 {
	if x == nil {
		return 0
	}
	return x.CustomerId
}

func (x *PlaceOrderRequest) GetQuantity() int32 {
	if x == nil {
		return 0
	}
	return x.Quantity
}

type PlaceOrderResponse struct {
	Order *Order `json:"order"`
}

func (x *PlaceOrderResponse) GetOrder() *Order {
	if x == nil {
		return nil
	}
	return x.Order
}

type CancelOrderRequest struct {
	OrderId int64 `json:"order_id"`
}

func (x *CancelOrderRequest) GetOrderId() int64 {
	if x == nil {
		return 0
	}
	return x.OrderId
}

// CancelOrderResponse: Transitioned=false, если заказ был отменён раньше.
type CancelOrderResponse struct {
	Order        *Order `json:"order"`
	Transitioned bool   `json:"transitioned"`
}

func (x *CancelOrderResponse) GetOrder() *Order {
	if x == nil {
		return nil
	}
	return x.Order
}

type GetOrderRequest struct {
	OrderId int64 `json:"order_id"`
}

func (x *GetOrderRequest) GetOrderId() int64 {
	if x == nil {
		return 0
	}
	return x.OrderId
}

type GetOrderResponse struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline"`
}

func (x *GetOrderResponse) GetOrder() *Order {
	if x == nil {
		return nil
	}
	return x.Order
}

func (x *GetOrderResponse) GetTimeline() []*TimelineEvent {
	if x == nil {
		return nil
	}
	return x.Timeline
}

type ListCustomerOrdersRequest struct {
	CustomerId int64 `json:"customer_id"`
}

func (x *ListCustomerOrdersRequest) GetCustomerId() int64 {
	if x == nil {
		return 0
	}
	return x.CustomerId
}

type ListCustomerOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

func (x *ListCustomerOrdersResponse) GetOrders() []*Order {
	if x == nil {
		return nil
	}
	return x.Orders
}

type RegisterCustomerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Passcode    string `json:"passcode"`
}

type RegisterCustomerResponse struct {
	Customer *Customer `json:"customer"`
}

func (x *RegisterCustomerResponse) GetCustomer() *Customer {
	if x == nil {
		return nil
	}
	return x.Customer
}
