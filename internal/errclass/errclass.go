// Package errclass сводит все ошибки приложения к единой классификации,
// которой пользуются и REST, и gRPC слои.
package errclass

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// Code: машиночитаемый код ошибки в ответе.
type Code string

const (
	CodeInvalidInput              Code = "invalid_input"
	CodeDishNotFound              Code = "dish_not_found"
	CodeCustomerNotFound          Code = "customer_not_found"
	CodeOrderNotFound             Code = "order_not_found"
	CodeNoDishesAvailable         Code = "no_dishes_available"
	CodeEmailAlreadyExists        Code = "email_already_exists"
	CodePhoneAlreadyExists        Code = "phone_already_exists"
	CodeCancellationWindowExpired Code = "cancellation_window_expired"
	CodeIdempotencyConflict       Code = "idempotency_conflict"
	CodeConflict                  Code = "conflict"
	CodeUnavailable               Code = "service_unavailable"
	CodePersistence               Code = "persistence_error"
	CodeInternal                  Code = "internal_error"
)

// Class: результат классификации ошибки.
type Class struct {
	Code       Code
	Message    string
	HTTPStatus int
	GRPCCode   codes.Code
	// Transient отмечает, что под ошибкой лежит временный сбой удалённой стороны.
	// Наружу это не выдаётся, но используется в логах и метриках.
	Transient bool
}

type rule struct {
	target error
	class  Class
}

// Порядок важен: NotFound проверяется раньше RemoteUnavailable,
// потому что сбой удалённого каталога снаружи выглядит как отсутствие блюда.
var rules = []rule{
	{domain.ErrInvalidInput, Class{Code: CodeInvalidInput, HTTPStatus: http.StatusBadRequest, GRPCCode: codes.InvalidArgument}},
	{domain.ErrDishNotFound, Class{Code: CodeDishNotFound, Message: "Dish not found", HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}},
	{domain.ErrCustomerNotFound, Class{Code: CodeCustomerNotFound, Message: "Customer not found", HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}},
	{domain.ErrOrderNotFound, Class{Code: CodeOrderNotFound, Message: "Order not found", HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}},
	{domain.ErrNoDishesInCategory, Class{Code: CodeNoDishesAvailable, Message: "No dishes available", HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}},
	{domain.ErrEmailAlreadyExists, Class{Code: CodeEmailAlreadyExists, Message: "Email already exists", HTTPStatus: http.StatusConflict, GRPCCode: codes.AlreadyExists}},
	{domain.ErrPhoneAlreadyExists, Class{Code: CodePhoneAlreadyExists, Message: "Phone number already exists", HTTPStatus: http.StatusConflict, GRPCCode: codes.AlreadyExists}},
	{domain.ErrCancellationWindowExpired, Class{Code: CodeCancellationWindowExpired, Message: "Order can't be cancelled 10 minutes after placing", HTTPStatus: http.StatusForbidden, GRPCCode: codes.FailedPrecondition}},
	{domain.ErrIdempotencyHashMismatch, Class{Code: CodeIdempotencyConflict, Message: "Idempotency key reused with different request", HTTPStatus: http.StatusConflict, GRPCCode: codes.AlreadyExists}},
	{domain.ErrIdempotencyKeyAlreadyExists, Class{Code: CodeIdempotencyConflict, Message: "Request with this idempotency key is in progress", HTTPStatus: http.StatusConflict, GRPCCode: codes.Aborted}},
	{domain.ErrOrderVersionConflict, Class{Code: CodeConflict, Message: "Order was modified concurrently", HTTPStatus: http.StatusConflict, GRPCCode: codes.Aborted}},
	{domain.ErrRemoteUnavailable, Class{Code: CodeUnavailable, Message: "Upstream service unavailable", HTTPStatus: http.StatusServiceUnavailable, GRPCCode: codes.Unavailable}},
	{domain.ErrPersistence, Class{Code: CodePersistence, Message: "Failed to persist changes", HTTPStatus: http.StatusInternalServerError, GRPCCode: codes.Internal}},
}

var internal = Class{Code: CodeInternal, Message: "Internal error", HTTPStatus: http.StatusInternalServerError, GRPCCode: codes.Internal}

// Classify возвращает класс ошибки. Для nil возвращается ok=false.
func Classify(err error) (Class, bool) {
	if err == nil {
		return Class{}, false
	}
	for _, r := range rules {
		if !errors.Is(err, r.target) {
			continue
		}
		class := r.class
		if class.Code == CodeInvalidInput {
			// Для валидации отдаём конкретные замечания, они не содержат внутренних деталей.
			class.Message = err.Error()
		}
		class.Transient = domain.IsTransient(err)
		return class, true
	}
	class := internal
	class.Transient = domain.IsTransient(err)
	return class, true
}

// Retryable сообщает, имеет ли смысл клиенту повторить тот же запрос.
func (c Class) Retryable() bool {
	switch c.Code {
	case CodeUnavailable, CodeConflict, CodePersistence, CodeInternal:
		return true
	default:
		return c.Transient
	}
}
