package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an upstream failure.
type Kind string

const (
	KindRateLimited         Kind = "rate_limited"
	KindTimeout             Kind = "timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindCircuitOpen         Kind = "circuit_open"
	KindSchemaValidation    Kind = "schema_validation_failed"
	KindInsufficientSources Kind = "insufficient_sources"
)

// Sentinel errors for use with errors.Is. A *Error matches the sentinel of
// its own kind.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrTimeout             = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCircuitOpen         = errors.New("circuit open")
	ErrSchemaValidation    = errors.New("schema validation failed")
	ErrInsufficientSources = errors.New("insufficient sources")
)

// Error is a classified upstream failure tagged with the service it came from.
type Error struct {
	Kind    Kind
	Service string
	Err     error
}

func NewError(kind Kind, service string, err error) *Error {
	return &Error{Kind: kind, Service: service, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches this error against the sentinel for its kind, so callers can
// write errors.Is(err, resilience.ErrCircuitOpen).
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func sentinelFor(k Kind) error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindTimeout:
		return ErrTimeout
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case KindCircuitOpen:
		return ErrCircuitOpen
	case KindSchemaValidation:
		return ErrSchemaValidation
	case KindInsufficientSources:
		return ErrInsufficientSources
	}
	return nil
}

// classify maps an arbitrary call error onto the taxonomy. Errors already
// carrying a Kind keep it, wrapped sentinels map to their kind, context
// deadlines become timeouts, and anything else is treated as the upstream
// being unavailable.
func classify(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrSchemaValidation):
		return KindSchemaValidation
	case errors.Is(err, ErrInsufficientSources):
		return KindInsufficientSources
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return KindTimeout
	}
	return KindUpstreamUnavailable
}

// transient reports whether a failure of the given kind may be retried.
func transient(k Kind) bool {
	switch k {
	case KindRateLimited, KindTimeout, KindUpstreamUnavailable:
		return true
	}
	return false
}
