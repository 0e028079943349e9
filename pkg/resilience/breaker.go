package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit position for one upstream service.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// breaker is a per-service circuit breaker. The failure counter and state
// transitions form one atomic unit under the mutex, so concurrent callers
// observing an open circuit all fail fast without racing each other.
type breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool

	now func() time.Time
}

func newBreaker(failureThreshold int, recoveryTimeout time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. An open circuit whose recovery
// window has elapsed moves to half-open and admits exactly one trial call;
// everyone else is turned away until that trial resolves.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.recoveryTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// Success records a successful call, closing the circuit and zeroing the
// failure counter.
func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFailures = 0
	b.trialInFlight = false
}

// Failure records a failed call. In half-open the circuit reopens and the
// recovery window restarts; in closed the counter trips the circuit once it
// reaches the threshold.
func (b *breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.open()
		}
	}
}

// Release abandons an admitted call without recording an outcome. Used when
// the caller's context is cancelled mid-flight, so a half-open trial slot is
// not left occupied forever.
func (b *breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// open must be called with the mutex held.
func (b *breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.trialInFlight = false
}

// State returns the current circuit position.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
