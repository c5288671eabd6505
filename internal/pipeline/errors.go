package pipeline

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrTimeout is returned when a round trip exceeds the configured timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// APIError is a structured error reported by the backend. It is the first
// entry of the response's error list.
type APIError struct {
	Status      int            `json:"-"`
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	LongMessage string         `json:"long_message,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	TraceID     string         `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.LongMessage
	if msg == "" {
		msg = e.Message
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, msg)
}

// StatusError is returned for a non-2xx response whose body is not a
// recognizable error envelope.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "response status code was unacceptable: " + strconv.Itoa(e.StatusCode)
}
