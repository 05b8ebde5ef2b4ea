package models

import "net/http"

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// Ожидаемые исходы операций. Сравниваются через errors.Is.
var (
	ErrInvalidInput           = NewErrorResponse(http.StatusBadRequest, "invalid input")
	ErrInvalidPrice           = NewErrorResponse(http.StatusBadRequest, "price must be a positive number")
	ErrRequestNotOpen         = NewErrorResponse(http.StatusConflict, "request no longer available")
	ErrRequestAlreadyAssigned = NewErrorResponse(http.StatusConflict, "request already assigned")
	ErrRequestNotFound        = NewErrorResponse(http.StatusNotFound, "request not found")
	ErrEstimateNotFound       = NewErrorResponse(http.StatusNotFound, "active estimate not found for this worker")
	ErrNotificationNotFound   = NewErrorResponse(http.StatusNotFound, "notification not found")
	ErrUnauthorized           = NewErrorResponse(http.StatusUnauthorized, "user is not authenticated")
	ErrForbidden              = NewErrorResponse(http.StatusForbidden, "you are not the owner of this request")
	ErrAccessDenied           = NewErrorResponse(http.StatusForbidden, "you do not have access to this request")
	ErrNotRecipient           = NewErrorResponse(http.StatusForbidden, "worker was not notified about this request")
	ErrDeliveryFailure        = NewErrorResponse(http.StatusServiceUnavailable, "notification delivery failed")
)

// KnownErrors перечисляет ожидаемые ошибки для восстановления их на стороне клиента.
var KnownErrors = []*ErrorResponse{
	ErrInvalidInput,
	ErrInvalidPrice,
	ErrRequestNotOpen,
	ErrRequestAlreadyAssigned,
	ErrRequestNotFound,
	ErrEstimateNotFound,
	ErrNotificationNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrAccessDenied,
	ErrNotRecipient,
	ErrDeliveryFailure,
}
