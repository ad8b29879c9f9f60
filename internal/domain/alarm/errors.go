package alarm

import "errors"

var (
	// ErrValidation marks malformed input such as an unparsable webhook body.
	ErrValidation = errors.New("validation error")
	// ErrAuth marks a remote call rejected for credentials.
	ErrAuth = errors.New("remote authentication failed")
	// ErrNetwork marks a remote call that never got a response.
	ErrNetwork = errors.New("remote network error")
	// ErrServer marks a remote call answered with a failure.
	ErrServer = errors.New("remote server error")
	// ErrInvariantViolation marks an operation that does not apply to the current state.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrBusy is returned when waiting for the lifecycle lock was abandoned.
	ErrBusy = errors.New("lifecycle busy")
	// ErrUnknownKind is returned when an alarm type name is not recognised.
	ErrUnknownKind = errors.New("unknown alarm type")
)

// IsTransient reports whether err is worth retrying.
// Only network failures qualify; auth and server errors never do.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork)
}
