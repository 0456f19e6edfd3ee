package drilldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
)

// Kind classifies a drilldown failure for the caller.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindUnknownEntity     Kind = "unknown_entity"
	KindUpstreamTransient Kind = "upstream_transient"
	KindUpstreamPermanent Kind = "upstream_permanent"
	KindCircuitOpen       Kind = "circuit_open"
	KindCancelled         Kind = "cancelled"
)

// ErrUnknownEntity is wrapped when an id is not in its catalog.
var ErrUnknownEntity = errors.New("unknown entity")

// Error is the only error type returned by Service. No partial payload is
// produced alongside it.
type Error struct {
	Kind Kind
	Op   string
	// RetryAfter is set for KindCircuitOpen.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError unwraps err to an *Error.
func AsError(err error) (*Error, bool) {
	var derr *Error
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}

func invalidInput(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

func unknownEntity(op, field, id string) *Error {
	return &Error{Kind: KindUnknownEntity, Op: op, Err: fmt.Errorf("%w: %s %q", ErrUnknownEntity, field, id)}
}

// upstreamError maps a resilience failure onto a Kind.
func upstreamError(op string, err error) *Error {
	e := &Error{Op: op, Err: err}

	var open *circuitbreaker.OpenError
	switch {
	case errors.As(err, &open):
		e.Kind = KindCircuitOpen
		e.RetryAfter = open.RetryAfter
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		e.Kind = KindCircuitOpen
	case errors.Is(err, retry.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindCancelled
	case errors.Is(err, retry.ErrExhausted):
		e.Kind = KindUpstreamTransient
	case errors.Is(err, period.ErrInvalidInput):
		e.Kind = KindInvalidInput
	default:
		e.Kind = KindUpstreamPermanent
	}
	return e
}
