// Package httpsvc публикует REST API сервисов заказов и каталога поверх chi.
package httpsvc

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/errclass"
)

const maxBodyBytes = 1 << 20

// ErrorResponse: тело ответа с ошибкой.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message, Status: status})
}

// writeError отдаёт ошибку приложения через общую классификацию.
func writeError(w http.ResponseWriter, logger *log.Entry, operation string, err error) {
	class, _ := errclass.Classify(err)
	entry := logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      class.Code,
		"transient": class.Transient,
	})
	if class.HTTPStatus >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if class.Retryable() && class.HTTPStatus == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeProblem(w, class.HTTPStatus, string(class.Code), class.Message)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeProblem(w, http.StatusNotFound, "route_not_found", "Route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}
