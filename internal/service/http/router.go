package httpsvc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

func newRouter(logger *log.Entry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)
	return r
}

// NewOrderRouter собирает маршруты сервиса заказов.
func NewOrderRouter(h *OrderHandler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = h.logger
	}
	r := newRouter(logger)

	r.Post("/customer", h.RegisterCustomer)
	r.Get("/customer/{id}", h.ListCustomerOrders)

	r.Post("/order", h.PlaceOrder)
	r.Put("/order/{id}", h.CancelOrder)
	r.Get("/order/{id}", h.GetOrder)

	r.Get("/menu/{category}", h.Menu)
	r.Get("/dish/{id}", h.Dish)
	return r
}

// NewCatalogRouter собирает маршруты каталога блюд.
func NewCatalogRouter(h *CatalogHandler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = h.logger
	}
	r := newRouter(logger)

	r.Get("/dish/{id}", h.Dish)
	r.Get("/dish/category/{category}", h.DishesByCategory)
	return r
}
