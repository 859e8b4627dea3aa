package whatsapp

import (
	"sync"
	"time"
)

type breakerState int

const (
	stClosed breakerState = iota
	stOpen
	stHalfOpen
)

// breaker is a small in-process circuit breaker guarding the Cloud API
// endpoint: trips open after N consecutive failures, allows a single probe
// after the cool-down.
type breaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &breaker{failThreshold: threshold, openFor: openFor}
}

// tryAcquire reports whether a request may go out now. In the open state a
// single probe is admitted once the cool-down has elapsed.
func (b *breaker) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case stClosed:
		return true
	case stOpen:
		if time.Now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = stHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	default: // half-open
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	}
}

func (b *breaker) onSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = stClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == stHalfOpen {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = stOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}
}
