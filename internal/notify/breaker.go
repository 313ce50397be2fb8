package notify

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker is rejecting deliveries.
var ErrBreakerOpen = errors.New("notification circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// breaker is a minimal circuit breaker for outbound platform calls. After
// consecutive delivery failures it rejects attempts for a cooldown period,
// then lets a single probe through.
type breaker struct {
	mu sync.Mutex

	state            breakerState
	failures         int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time

	now func() time.Time
}

func newBreaker(failureThreshold int, cooldown time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// allow reports whether a delivery attempt may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		// Only the probe that moved us here is in flight; further attempts
		// wait for its outcome.
		return false
	default:
		return false
	}
}

// record feeds a delivery outcome back into the breaker.
func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = stateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}
