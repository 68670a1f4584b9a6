package runner

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is cooling down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker is a minimal circuit breaker: consecutive failures past the
// threshold open the circuit for the cooldown period, after which the next
// call is allowed through as a probe.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures  int
	openUntil time.Time
}

// NewBreaker creates a breaker tripping after threshold consecutive
// failures, staying open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if time.Now().Before(b.openUntil) {
		return ErrCircuitOpen
	}
	return nil
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
		b.failures = 0
	}
}
