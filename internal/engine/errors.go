package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"eav-backend/internal/eav"
)

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// StatusCode lets middleware see the response status before the error handler writes it.
func (e *AppError) StatusCode() int {
	return e.Status
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(resource string, id int64) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with id %d not found", resource, id),
	}
}

func InvalidArgumentError(msg string) *AppError {
	return &AppError{Code: "INVALID_ARGUMENT", Status: fiber.StatusBadRequest, Message: msg}
}

// errorKinds maps each repository error kind to its transport form, most specific first.
var errorKinds = []struct {
	kind   error
	code   string
	status int
}{
	{eav.ErrInvalidConfiguration, "INVALID_CONFIGURATION", fiber.StatusBadRequest},
	{eav.ErrConnection, "CONNECTION_ERROR", fiber.StatusInternalServerError},
	{eav.ErrNotConnected, "NOT_CONNECTED", fiber.StatusServiceUnavailable},
	{eav.ErrInvalidArgument, "INVALID_ARGUMENT", fiber.StatusBadRequest},
	{eav.ErrCreationFailed, "CREATION_FAILED", fiber.StatusInternalServerError},
	{eav.ErrNotFound, "NOT_FOUND", fiber.StatusNotFound},
	{eav.ErrDuplicateName, "DUPLICATE_NAME", fiber.StatusConflict},
}

// AsAppError converts any handler error into the form the client sees.
// Errors of no known kind become a generic INTERNAL_ERROR keeping err as the cause.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return &AppError{Code: k.code, Status: k.status, Message: err.Error(), cause: err}
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &AppError{Code: fiberCode(fiberErr.Code), Status: fiberErr.Code, Message: fiberErr.Message, cause: err}
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Status:  fiber.StatusInternalServerError,
		Message: "Internal server error",
		cause:   err,
	}
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return "INVALID_ARGUMENT"
	default:
		return "HTTP_ERROR"
	}
}

// MapErrors converts errors returned further down the chain into *AppError so
// metrics and request logging see the final status.
func MapErrors() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return AsAppError(err)
		}
		return nil
	}
}

// ErrorHandler renders every error as ErrorResponse. Server-side failures are logged
// with their cause.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := AsAppError(err)
		if appErr.Status >= fiber.StatusInternalServerError && log != nil {
			cause := err
			if appErr.cause != nil {
				cause = appErr.cause
			}
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("code", appErr.Code),
				zap.Error(cause))
		}
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}
}
