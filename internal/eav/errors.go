package eav

import (
	"github.com/cockroachdb/errors"

	"eav-backend/internal/store"
)

// Error kinds surfaced to the transport layer. Match them with errors.Is.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConnection           = errors.New("connection error")
	ErrNotConnected         = errors.New("not connected")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrCreationFailed       = errors.New("creation failed")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateName        = errors.New("duplicate name")
)

func invalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// creationFailed reports that the confirmation read after a write found nothing.
func creationFailed(resource string) error {
	return errors.Wrapf(ErrCreationFailed, "%s", resource)
}

func notFound(resource string, id int64) error {
	return errors.Wrapf(ErrNotFound, "%s %d", resource, id)
}

// WithKind returns an error of the given kind whose message also carries cause.
// The kind sits on the wrap chain so errors.Is matches it; the cause is kept as
// secondary detail.
func WithKind(kind, cause error, msg string) error {
	return errors.WithSecondaryError(errors.Wrapf(kind, "%s: %v", msg, cause), cause)
}

// wrapDB annotates a driver error, promoting unique violations to ErrDuplicateName.
func (r *Repository) wrapDB(err error, op string) error {
	if err == nil {
		return nil
	}
	mapped := store.MapError(r.dialect, err)
	if errors.Is(mapped, store.ErrUniqueViolation) {
		return WithKind(ErrDuplicateName, mapped, op)
	}
	return errors.Wrap(mapped, op)
}
