package goClerk

import (
	"errors"

	"github.com/MrEthical07/goClerk/internal/pipeline"
)

var (
	// ErrPrecondition is matched by every local precondition error.
	ErrPrecondition = errors.New("precondition failed")
	// ErrSignUpNotStarted is returned by sign-up steps called before Create.
	ErrSignUpNotStarted = errors.New("sign-up not started")
	// ErrSignInNotStarted is returned by sign-in steps called before Create.
	ErrSignInNotStarted = errors.New("sign-in not started")
	// ErrNoActiveSession is returned when an operation needs a signed-in user.
	ErrNoActiveSession = errors.New("no active session")
	// ErrInvalidParams is returned when parameters fail local validation.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrStrategyNotEnabled is returned when the loaded environment does not
	// enable the requested verification strategy.
	ErrStrategyNotEnabled = errors.New("verification strategy not enabled")

	// ErrInvalidConfig wraps every Builder and Config validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrEngineClosed is returned by operations on a closed Engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrTimeout is returned when a round trip exceeds Config.API.Timeout.
	ErrTimeout = pipeline.ErrTimeout
	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = pipeline.ErrCircuitOpen
)

// APIError is a structured error reported by the Frontend API. Callers branch
// on Code (for example "form_code_incorrect").
type APIError = pipeline.APIError

// StatusError is returned for a non-2xx response without a recognizable error
// body.
type StatusError = pipeline.StatusError

// ClientError is a local precondition failure raised before any network call.
// Err is one of the precondition sentinels above.
type ClientError struct {
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is lets every ClientError match ErrPrecondition.
func (e *ClientError) Is(target error) bool {
	return target == ErrPrecondition
}

func newClientError(sentinel error, message string) error {
	return &ClientError{Message: message, Err: sentinel}
}

// IsAPIErrorCode reports whether err carries a backend error with the given
// code.
func IsAPIErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
