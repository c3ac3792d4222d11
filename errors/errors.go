// Package errors defines AppError, the single error shape that handlers push
// onto the gin context and the ErrorHandler middleware renders.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/resaletix/resaletix-backend/logger"
)

type ErrorType string

const (
	ValidationError              ErrorType = "VALIDATION_ERROR"
	NotFoundError                ErrorType = "NOT_FOUND"
	AuthError                    ErrorType = "AUTHENTICATION_ERROR"
	ForbiddenError               ErrorType = "FORBIDDEN"
	DatabaseError                ErrorType = "DATABASE_ERROR"
	ServerError                  ErrorType = "SERVER_ERROR"
	ConflictError                ErrorType = "CONFLICT"
	DuplicateTicketError         ErrorType = "DUPLICATE_TICKET"
	UpstreamError                ErrorType = "UPSTREAM_SERVICE_ERROR"
	RateLimitError               ErrorType = "RATE_LIMIT_EXCEEDED"
	PayloadTooLargeError         ErrorType = "PAYLOAD_TOO_LARGE"
	UnsupportedMediaError        ErrorType = "UNSUPPORTED_MEDIA_TYPE"
	InvalidStatusTransitionError ErrorType = "INVALID_STATUS_TRANSITION"
)

// AppError carries a client-facing message plus the HTTP status to send.
// Detail is shown to clients only for error types the ErrorHandler marks public.
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus falls back to the status implied by Type when none was set.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return getHTTPStatus(e.Type)
}

// As reports whether err is (or wraps) an AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap returns nil for a nil err so callers can wrap unconditionally.
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func AuthenticationFailed(message string) *AppError {
	return &AppError{
		Type:       AuthError,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Unauthorized is AuthenticationFailed with a machine-readable code such as
// "token_expired".
func Unauthorized(code, message string) *AppError {
	return &AppError{
		Type:       AuthError,
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string, details string) *AppError {
	return &AppError{
		Type:       ForbiddenError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewDatabaseError logs the driver error and hides it from the client.
func NewDatabaseError(err error) *AppError {
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:       DatabaseError,
		Message:    "Database operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func NewConflictError(message string, detail string) *AppError {
	return &AppError{
		Type:       ConflictError,
		Message:    message,
		Detail:     detail,
		HTTPStatus: http.StatusConflict,
	}
}

// DuplicateTicket is returned when a submission matches an existing listing.
// Code carries the verdict (duplicate-exact or duplicate-similar).
func DuplicateTicket(verdict string, reason string) *AppError {
	return &AppError{
		Type:       DuplicateTicketError,
		Code:       verdict,
		Message:    "This ticket has already been listed",
		Detail:     reason,
		HTTPStatus: http.StatusConflict,
	}
}

// UpstreamFailure reports a failed dependency call with a generic message.
// The underlying error stays in Raw for logging only.
func UpstreamFailure(service string, err error) *AppError {
	return &AppError{
		Type:       UpstreamError,
		Message:    fmt.Sprintf("%s is unavailable, please try again later", service),
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

func RateLimitExceeded(retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitError,
		Message:    "Too many requests",
		Detail:     fmt.Sprintf("retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func PayloadTooLarge(limit int64) *AppError {
	return &AppError{
		Type:       PayloadTooLargeError,
		Message:    "File too large",
		Detail:     fmt.Sprintf("maximum size is %d bytes", limit),
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}

func UnsupportedMediaType(mime string) *AppError {
	return &AppError{
		Type:       UnsupportedMediaError,
		Message:    "Unsupported file type",
		Detail:     mime,
		HTTPStatus: http.StatusUnsupportedMediaType,
	}
}

func InvalidStatusTransition(current, next string) *AppError {
	return &AppError{
		Type:       InvalidStatusTransitionError,
		Message:    "Invalid status transition",
		Detail:     fmt.Sprintf("Cannot transition from %s to %s", current, next),
		HTTPStatus: http.StatusBadRequest,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError, InvalidStatusTransitionError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case AuthError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case ConflictError, DuplicateTicketError:
		return http.StatusConflict
	case UpstreamError:
		return http.StatusBadGateway
	case RateLimitError:
		return http.StatusTooManyRequests
	case PayloadTooLargeError:
		return http.StatusRequestEntityTooLarge
	case UnsupportedMediaError:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
