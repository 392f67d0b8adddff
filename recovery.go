// This file (recovery.go) contains the per-plugin tick breaker. A plugin
// whose Tick keeps panicking is skipped for a cool-down window, then given
// a single trial tick before it is ticked every frame again.

package vectorium

import (
	"sync"
	"time"
)

const (
	defaultTickFailureThreshold = 3
	defaultTickCooldown         = 5 * time.Second
)

// CircuitState represents the state of a tick breaker.
type CircuitState int

const (
	CircuitStateClosed CircuitState = iota
	CircuitStateOpen
	CircuitStateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitStateClosed:
		return "closed"
	case CircuitStateOpen:
		return "open"
	case CircuitStateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// tickBreaker counts consecutive failed ticks of one plugin.
type tickBreaker struct {
	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
	threshold   int
	cooldown    time.Duration
	now         func() time.Time
}

func newTickBreaker(threshold int, cooldown time.Duration) *tickBreaker {
	if threshold <= 0 {
		threshold = defaultTickFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultTickCooldown
	}
	return &tickBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// allow reports whether the plugin should tick this frame. An open breaker
// moves to half-open once the cool-down has elapsed.
func (b *tickBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateOpen:
		if b.now().Sub(b.lastFailure) < b.cooldown {
			return false
		}
		b.state = CircuitStateHalfOpen
		return true
	default:
		return true
	}
}

// record feeds the outcome of a tick.
func (b *tickBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = CircuitStateClosed
		return
	}
	b.failures++
	b.lastFailure = b.now()
	if b.state == CircuitStateHalfOpen || b.failures >= b.threshold {
		b.state = CircuitStateOpen
	}
}

func (b *tickBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
