// Package backend talks to the hosted model that answers user turns.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"nutritrack/internal/models"
)

// DefaultTimeout bounds a single GenerateTurn call.
const DefaultTimeout = 30 * time.Second

// Backend produces the raw JSON reply for one turn.
type Backend interface {
	GenerateTurn(ctx context.Context, req *models.TurnRequest) ([]byte, error)
}

type Kind string

const (
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindBackend   Kind = "backend"
	KindSchema    Kind = "schema"
)

// Error tags a failure with its kind. Callers collapse every kind into the
// same fallback reply; the kind only feeds logs and telemetry.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(err error) error {
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}

func backendError(format string, args ...interface{}) error {
	return &Error{Kind: KindBackend, Err: fmt.Errorf(format, args...)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf classifies err. Untagged errors count as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindTransport
}
