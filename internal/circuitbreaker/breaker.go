package circuitbreaker

import (
	"sync"
	"time"
)

// Tracks consecutive failures against a backend and decides whether callers
// should attempt it. Unlike a wrap-and-execute breaker, callers observe the
// decision via Allow and report outcomes via RecordSuccess/RecordFailure, so
// a denied attempt can be served from a fallback instead of erroring.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastStateChange time.Time

	maxFailures     int           // Consecutive failures before opening
	timeout         time.Duration // How long to stay open before probing
	halfOpenSuccess int           // Successes needed in half-open to close
}

type Config struct {
	MaxFailures     int           // Default: 5
	Timeout         time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}

	return &CircuitBreaker{
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		timeout:         cfg.Timeout,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		lastStateChange: time.Now(),
	}
}

// Reports whether the backend should be attempted right now. An open breaker
// whose timeout has elapsed transitions to half-open and allows a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.timeout {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// Probe failed, back to open for another timeout
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Caller must hold cb.mu
func (cb *CircuitBreaker) transition(next State) {
	cb.state = next
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastStateChange = time.Now()
}
