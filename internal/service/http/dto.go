package httpsvc

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/service/ordering"
)

// PlaceOrderRequest: тело POST /order.
type PlaceOrderRequest struct {
	DishID     int64 `json:"dishId"`
	CustomerID int64 `json:"customerId"`
	Quantity   int32 `json:"quantity"`
}

// RegisterCustomerRequest: тело POST /customer.
type RegisterCustomerRequest struct {
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Email       string      `json:"email"`
	PhoneNumber phoneNumber `json:"phoneNumber"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	ZipCode     string      `json:"zipCode"`
	Passcode    string      `json:"passcode"`
}

// phoneNumber принимает номер и строкой, и числом.
type phoneNumber string

func (p *phoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*p = phoneNumber(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = phoneNumber(s)
	return nil
}

func (r RegisterCustomerRequest) toDomain() domain.CustomerRegistration {
	return domain.CustomerRegistration{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		PhoneNumber: string(r.PhoneNumber),
		Address:     r.Address,
		City:        r.City,
		State:       r.State,
		ZipCode:     r.ZipCode,
		Passcode:    r.Passcode,
	}
}

// OrderResponse: заказ в ответах API.
type OrderResponse struct {
	OrderID    int64     `json:"orderId"`
	DishID     int64     `json:"dishId"`
	CustomerID int64     `json:"customerId"`
	Quantity   int32     `json:"quantity"`
	Status     string    `json:"status"`
	PlacedAt   time.Time `json:"placedAt"`
}

// TimelineEventResponse: событие жизненного цикла заказа.
type TimelineEventResponse struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderDetailsResponse: ответ GET /order/{id}.
type OrderDetailsResponse struct {
	Order    OrderResponse           `json:"order"`
	Timeline []TimelineEventResponse `json:"timeline"`
}

// CustomerResponse: профиль клиента. Пароля здесь нет и не должно быть.
type CustomerResponse struct {
	CustomerID  int64     `json:"customerId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zipCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toOrderResponse(s domain.OrderSummary) OrderResponse {
	return OrderResponse{
		OrderID:    s.OrderID,
		DishID:     s.DishID,
		CustomerID: s.CustomerID,
		Quantity:   s.Quantity,
		Status:     string(s.Status),
		PlacedAt:   s.PlacedAt.UTC(),
	}
}

func toOrderDetailsResponse(d ordering.OrderDetails) OrderDetailsResponse {
	timeline := make([]TimelineEventResponse, 0, len(d.Timeline))
	for _, event := range d.Timeline {
		timeline = append(timeline, TimelineEventResponse{
			Type:       event.Type,
			Reason:     event.Reason,
			OccurredAt: event.Occurred.UTC(),
		})
	}
	return OrderDetailsResponse{Order: toOrderResponse(d.Order), Timeline: timeline}
}

func toCustomerResponse(p domain.CustomerProfile) CustomerResponse {
	return CustomerResponse{
		CustomerID:  p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		ZipCode:     p.ZipCode,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}
