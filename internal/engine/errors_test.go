package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"eav-backend/internal/eav"
)

func TestAsAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"invalid configuration", errors.Wrap(eav.ErrInvalidConfiguration, "host is required"), "INVALID_CONFIGURATION", 400},
		{"connection", eav.WithKind(eav.ErrConnection, errors.New("dial tcp"), "connect"), "CONNECTION_ERROR", 500},
		{"not connected", eav.ErrNotConnected, "NOT_CONNECTED", 503},
		{"invalid argument", errors.Wrapf(eav.ErrInvalidArgument, "bad %s", "id"), "INVALID_ARGUMENT", 400},
		{"creation failed", errors.Wrap(eav.ErrCreationFailed, "entity"), "CREATION_FAILED", 500},
		{"not found", errors.Wrap(eav.ErrNotFound, "entity 3"), "NOT_FOUND", 404},
		{"duplicate", eav.WithKind(eav.ErrDuplicateName, errors.New("unique"), "create"), "DUPLICATE_NAME", 409},
		{"fiber", fiber.ErrMethodNotAllowed, "METHOD_NOT_ALLOWED", 405},
		{"app error passthrough", NotFoundError("entity", 7), "NOT_FOUND", 404},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := AsAppError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.status, appErr.StatusCode())
		})
	}
}

func TestAsAppError_HidesInternalCause(t *testing.T) {
	cause := errors.New("pq: password authentication failed")
	appErr := AsAppError(errors.Wrap(cause, "list entities"))

	assert.Equal(t, "Internal server error", appErr.Message)
	assert.ErrorIs(t, appErr, cause)
}

func TestAsAppError_Nil(t *testing.T) {
	assert.Nil(t, AsAppError(nil))
}
