package executor

import (
	"sync"
	"time"
)

// breakerState is the circuit state for one worker.
type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half_open"
)

const (
	// breakerFailureThreshold opens the circuit after this many
	// consecutive failures.
	breakerFailureThreshold = 5

	// breakerCooldown is how long an open circuit stays open before
	// admitting probes.
	breakerCooldown = 30 * time.Second

	// breakerProbeLimit caps concurrent probes while half-open.
	breakerProbeLimit = 1
)

// circuitBreaker shields a worker from further assignment after repeated
// failures. Closed admits everything; open admits nothing until the
// cooldown elapses; half-open admits a bounded number of probe tasks and
// closes again on the first probe success.
type circuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	openedAt     time.Time
	activeProbes int
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{state: breakerClosed}
}

// Allow reports whether a task may be assigned through this breaker and
// reserves a probe slot when half-open.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) < breakerCooldown {
			return false
		}
		b.state = breakerHalfOpen
		b.activeProbes = 1
		return true
	case breakerHalfOpen:
		if b.activeProbes >= breakerProbeLimit {
			return false
		}
		b.activeProbes++
		return true
	}
	return false
}

// Ready reports whether Allow would currently admit a task, without
// reserving a probe slot.
func (b *circuitBreaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		return time.Since(b.openedAt) >= breakerCooldown
	case breakerHalfOpen:
		return b.activeProbes < breakerProbeLimit
	}
	return false
}

// Cancel returns a probe slot reserved by Allow for a task that was
// abandoned before executing, without recording an outcome.
func (b *circuitBreaker) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen && b.activeProbes > 0 {
		b.activeProbes--
	}
}

// Record feeds one task outcome into the breaker.
func (b *circuitBreaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen && b.activeProbes > 0 {
		b.activeProbes--
	}

	if !failed {
		b.failures = 0
		b.state = breakerClosed
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= breakerFailureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.failures = 0
	}
}

// State returns the current circuit state.
func (b *circuitBreaker) State() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
