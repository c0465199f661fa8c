package apperror

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION"
	CodeExternal   = "EXTERNAL"
	CodeInternal   = "INTERNAL"
)

// AppError is the error type crossing the service boundary. Handlers map it
// to an HTTP status; everything that is not an AppError renders as 500.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func NotFound(format string, args ...interface{}) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func External(message string, err error) *AppError {
	return &AppError{Code: CodeExternal, Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}
