package httpsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/service/ordering"
)

// Ordering: операции оркестратора, доступные через REST.
type Ordering interface {
	PlaceOrder(ctx context.Context, req ordering.PlaceOrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (ordering.CancelResult, error)
	GetOrder(ctx context.Context, orderID int64) (ordering.OrderDetails, error)
	ListOrdersForCustomer(ctx context.Context, customerID int64) ([]domain.OrderSummary, error)
	Dish(ctx context.Context, dishID int64) (domain.Dish, error)
	Menu(ctx context.Context, category string) ([]domain.Dish, error)
}

// CustomerRegistrar регистрирует клиентов.
type CustomerRegistrar interface {
	Register(ctx context.Context, reg domain.CustomerRegistration) (domain.CustomerProfile, error)
}

// OrderHandler обслуживает REST API сервиса заказов.
type OrderHandler struct {
	orders    Ordering
	customers CustomerRegistrar
	logger    *log.Entry
}

// NewOrderHandler создаёт обработчик.
func NewOrderHandler(orders Ordering, customers CustomerRegistrar, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-order-service")
	}
	return &OrderHandler{orders: orders, customers: customers, logger: logger}
}

// RegisterCustomer обрабатывает POST /customer.
func (h *OrderHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req RegisterCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "RegisterCustomer", err)
		return
	}

	profile, err := h.customers.Register(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, h.logger, "RegisterCustomer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(profile))
}

// ListCustomerOrders обрабатывает GET /customer/{id}.
func (h *OrderHandler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id", domain.ErrCustomerIDRequired)
	if err != nil {
		writeError(w, h.logger, "ListCustomerOrders", err)
		return
	}

	summaries, err := h.orders.ListOrdersForCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, h.logger, "ListCustomerOrders", err)
		return
	}

	result := make([]OrderResponse, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, toOrderResponse(summary))
	}
	writeJSON(w, http.StatusOK, result)
}

// PlaceOrder обрабатывает POST /order.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "PlaceOrder", err)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), ordering.PlaceOrderRequest{
		DishID:     req.DishID,
		CustomerID: req.CustomerID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeError(w, h.logger, "PlaceOrder", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/order/%d", order.ID))
	writeJSON(w, http.StatusCreated, toOrderResponse(order.Summary()))
}

// CancelOrder обрабатывает PUT /order/{id}. 202, если заказ отменён этим запросом, 200, если он уже был отменён.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id", domain.ErrOrderIDRequired)
	if err != nil {
		writeError(w, h.logger, "CancelOrder", err)
		return
	}

	result, err := h.orders.CancelOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, "CancelOrder", err)
		return
	}

	code := http.StatusOK
	if result.Transitioned {
		code = http.StatusAccepted
	}
	writeJSON(w, code, toOrderResponse(result.Order))
}

// GetOrder обрабатывает GET /order/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id", domain.ErrOrderIDRequired)
	if err != nil {
		writeError(w, h.logger, "GetOrder", err)
		return
	}

	details, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, "GetOrder", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailsResponse(details))
}

// Menu обрабатывает GET /menu/{category}.
func (h *OrderHandler) Menu(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.orders.Menu(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, h.logger, "Menu", err)
		return
	}
	writeJSON(w, http.StatusOK, dishes)
}

// Dish обрабатывает GET /dish/{id}.
func (h *OrderHandler) Dish(w http.ResponseWriter, r *http.Request) {
	dishID, err := pathID(r, "id", domain.ErrDishIDRequired)
	if err != nil {
		writeError(w, h.logger, "Dish", err)
		return
	}

	dish, err := h.orders.Dish(r.Context(), dishID)
	if err != nil {
		writeError(w, h.logger, "Dish", err)
		return
	}
	writeJSON(w, http.StatusOK, dish)
}

func pathID(r *http.Request, param string, invalid error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput(invalid)
	}
	return id, nil
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.InvalidInput(errEmptyBody)
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return domain.InvalidInput(fmt.Errorf("malformed request body: %w", err))
	}
	return nil
}
