package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок. Конкретные ошибки оборачиваются в них, а граница транспорта
// классифицирует их через errors.Is.
var (
	// ErrInvalidInput: ошибка вызывающей стороны, повтор без изменения запроса бессмысленен.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRemoteUnavailable: временный сбой удалённого вызова (таймаут, отказ соединения, битый ответ).
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrPersistence: сбой хранилища, фатальный для текущего запроса.
	ErrPersistence = errors.New("persistence failure")
)

var (
	// Ошибка отсутствующего идентификатора блюда.
	ErrDishIDRequired = errors.New("dish_id must be positive")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerIDRequired = errors.New("customer_id must be positive")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id must be positive")
	// Ошибка при некорректном количестве (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("order status is invalid")
	// Ошибка пустого времени оформления.
	ErrPlacedAtRequired = errors.New("placed_at is required")

	ErrFirstNameRequired = errors.New("first name is required")
	ErrFirstNameTooLong  = errors.New("first name must be at most 100 characters long")
	ErrLastNameRequired  = errors.New("last name is required")
	ErrEmailRequired     = errors.New("email is required")
	ErrEmailInvalid      = errors.New("email is malformed")
	ErrPhoneInvalid      = errors.New("phone number must contain exactly 10 digits")
	ErrAddressRequired   = errors.New("address is required")
	ErrCityRequired      = errors.New("city is required")
	ErrStateRequired     = errors.New("state is required")
	ErrZipCodeRequired   = errors.New("zip code is required")
	ErrPasscodeTooShort  = errors.New("passcode must be at least 6 characters long")

	ErrDishCategoryRequired    = errors.New("dish category is required")
	ErrDishNameRequired        = errors.New("dish name is required")
	ErrDishPriceInvalid        = errors.New("dish unit price must be positive")
	ErrDishDescriptionRequired = errors.New("dish description is required")
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDishNotFound возвращается, если блюдо отсутствует в каталоге.
	ErrDishNotFound = errors.New("dish not found")
	// ErrDishAlreadyExists возвращается при повторной загрузке блюда с тем же ID.
	ErrDishAlreadyExists = errors.New("dish already exists")
	// ErrNoDishesInCategory возвращается для пустой категории меню.
	ErrNoDishesInCategory = errors.New("no dishes available")
	// ErrCustomerNotFound возвращается, если клиент не зарегистрирован.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrEmailAlreadyExists: email уже занят другим клиентом.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrPhoneAlreadyExists: телефон уже занят другим клиентом.
	ErrPhoneAlreadyExists = errors.New("phone number already exists")
	// ErrCancellationWindowExpired: заказ нельзя отменить спустя 10 минут после оформления.
	ErrCancellationWindowExpired = errors.New("order can't be cancelled 10 minutes after placing")
	// ErrOrderAlreadyCancelled: заказ уже находится в терминальном статусе.
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// InvalidInput оборачивает замечания валидации в ErrInvalidInput.
func InvalidInput(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

// Persistence оборачивает ошибку хранилища в ErrPersistence.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// RemoteUnavailable оборачивает сбой удалённого вызова в ErrRemoteUnavailable.
func RemoteUnavailable(target string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, target, err)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsTransient сообщает, что ошибка вызвана временным сбоем удалённой стороны.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// IsIdempotencyConflict проверяет конфликт ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
