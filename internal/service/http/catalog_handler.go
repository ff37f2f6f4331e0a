package httpsvc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// CatalogHandler обслуживает REST API каталога блюд.
type CatalogHandler struct {
	dishes domain.DishCatalog
	logger *log.Entry
}

// NewCatalogHandler создаёт обработчик каталога.
func NewCatalogHandler(dishes domain.DishCatalog, logger *log.Entry) *CatalogHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-catalog-service")
	}
	return &CatalogHandler{dishes: dishes, logger: logger}
}

// Dish обрабатывает GET /dish/{id}.
func (h *CatalogHandler) Dish(w http.ResponseWriter, r *http.Request) {
	dishID, err := pathID(r, "id", domain.ErrDishIDRequired)
	if err != nil {
		writeError(w, h.logger, "Dish", err)
		return
	}

	dish, err := h.dishes.Dish(r.Context(), dishID)
	if err != nil {
		writeError(w, h.logger, "Dish", err)
		return
	}
	writeJSON(w, http.StatusOK, dish)
}

// DishesByCategory обрабатывает GET /dish/category/{category}.
func (h *CatalogHandler) DishesByCategory(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.dishes.DishesByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, h.logger, "DishesByCategory", err)
		return
	}
	writeJSON(w, http.StatusOK, dishes)
}
