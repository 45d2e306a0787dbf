// Package http provides the HTTP client infrastructure for YouTube page fetches
package http

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal state where requests are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen is the state where requests fail fast.
	CircuitOpen
	// CircuitHalfOpen is the testing state where one request is allowed.
	CircuitHalfOpen
)

// String returns the string representation of a circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Circuit breaker defaults.
const (
	// DefaultFailureThreshold is the number of consecutive failures to open the circuit.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long the circuit stays open before testing.
	DefaultRecoveryTimeout = 30 * time.Second
	// DefaultHalfOpenMaxRequests is the number of test requests allowed in half-open state.
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures to open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before transitioning to half-open.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of test requests allowed in half-open state.
	HalfOpenMaxRequests int
	// IsTransientError decides whether an error counts toward the failure
	// threshold. Permanent errors (bad URL, auth) say nothing about the
	// domain's health and are ignored. Nil counts every error.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

// circuit holds the state for a single domain.
type circuit struct {
	state             CircuitState
	consecutiveErrors int
	lastError         time.Time
	lastStateChange   time.Time
	halfOpenRequests  int
}

// CircuitBreaker tracks failures per domain and fails fast when a domain
// keeps erroring, so one dead endpoint cannot stall a whole sync run.
type CircuitBreaker struct {
	circuits map[string]*circuit
	mu       sync.Mutex
	config   CircuitBreakerConfig
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}

	return &CircuitBreaker{
		circuits: make(map[string]*circuit),
		config:   cfg,
	}
}

// Allow reports whether a request to the domain may proceed. It returns
// ErrCircuitOpen while the circuit is open and not yet due for a probe.
func (cb *CircuitBreaker) Allow(domain string) error {
	if cb == nil {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(domain)

	switch c.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
			// Move to half-open; this request is the first probe.
			c.state = CircuitHalfOpen
			c.lastStateChange = time.Now()
			c.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitOpen

	case CircuitHalfOpen:
		if c.halfOpenRequests < cb.config.HalfOpenMaxRequests {
			c.halfOpenRequests++
			return nil
		}
		return ErrCircuitOpen

	default:
		return nil
	}
}

// RecordSuccess records a successful request for the given domain.
// In half-open state, this closes the circuit.
func (cb *CircuitBreaker) RecordSuccess(domain string) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(domain)

	switch c.state {
	case CircuitHalfOpen:
		c.state = CircuitClosed
		c.lastStateChange = time.Now()
		c.consecutiveErrors = 0
		c.halfOpenRequests = 0

	case CircuitClosed:
		c.consecutiveErrors = 0
	}
}

// RecordFailure records a failed request for the given domain.
// If the failure threshold is reached, the circuit opens.
func (cb *CircuitBreaker) RecordFailure(domain string, err error) {
	if cb == nil {
		return
	}

	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(domain)

	switch c.state {
	case CircuitClosed:
		c.consecutiveErrors++
		c.lastError = time.Now()

		if c.consecutiveErrors >= cb.config.FailureThreshold {
			c.state = CircuitOpen
			c.lastStateChange = time.Now()
		}

	case CircuitHalfOpen:
		// A failed probe reopens the circuit.
		c.state = CircuitOpen
		c.lastStateChange = time.Now()
		c.consecutiveErrors++
	}
}

// GetState returns the current state of the circuit for a domain.
func (cb *CircuitBreaker) GetState(domain string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, exists := cb.circuits[domain]
	if !exists {
		return CircuitClosed
	}

	if c.state == CircuitOpen && time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
		return CircuitHalfOpen
	}
	return c.state
}

// CircuitStats contains statistics about a circuit's state.
type CircuitStats struct {
	State             CircuitState
	ConsecutiveErrors int
	LastError         time.Time
	LastStateChange   time.Time
}

// GetStats returns statistics for a domain's circuit.
func (cb *CircuitBreaker) GetStats(domain string) CircuitStats {
	if cb == nil {
		return CircuitStats{State: CircuitClosed}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, exists := cb.circuits[domain]
	if !exists {
		return CircuitStats{State: CircuitClosed}
	}

	state := c.state
	if state == CircuitOpen && time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
		state = CircuitHalfOpen
	}

	return CircuitStats{
		State:             state,
		ConsecutiveErrors: c.consecutiveErrors,
		LastError:         c.lastError,
		LastStateChange:   c.lastStateChange,
	}
}

// Reset resets the circuit for a domain to the closed state.
func (cb *CircuitBreaker) Reset(domain string) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	delete(cb.circuits, domain)
}

// ResetAll resets all circuits to the closed state.
func (cb *CircuitBreaker) ResetAll() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.circuits = make(map[string]*circuit)
}

// getOrCreate returns the circuit for a domain. Must be called with the
// mutex held.
func (cb *CircuitBreaker) getOrCreate(domain string) *circuit {
	c, exists := cb.circuits[domain]
	if !exists {
		c = &circuit{
			state:           CircuitClosed,
			lastStateChange: time.Now(),
		}
		cb.circuits[domain] = c
	}
	return c
}

// IsTransientHTTPError reports whether an error says something temporary
// about the remote domain. Use it as CircuitBreakerConfig.IsTransientError.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return true
		}
		if httpErr.StatusCode == 429 {
			return true
		}
		return false
	}

	// Network errors, timeouts, etc.
	return true
}
