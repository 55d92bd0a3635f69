// Package circuitbreaker stops calling an upstream that keeps failing and
// probes it again after a cool-down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/address-discovery/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means a limited number of probe requests are allowed
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open probe quota is used up
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name string
	// ConsecutiveFailures opens the circuit once reached
	ConsecutiveFailures int
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// HalfOpenMaxCalls successful probes close the circuit again
	HalfOpenMaxCalls int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                name,
		ConsecutiveFailures: 5,
		Timeout:             60 * time.Second,
		HalfOpenMaxCalls:    1,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	probesInFlight   int
	probeSuccesses   int
	lastStateChange  time.Time
	totalFailures    int
	totalSuccesses   int
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	cfg := *config
	if cfg.ConsecutiveFailures <= 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		cfg:             cfg,
		now:             time.Now,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the circuit is open. Context cancellation is not
// counted as an upstream failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}

	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.probesInFlight+cb.probeSuccesses >= cb.cfg.HalfOpenMaxCalls {
			return ErrTooManyRequests
		}
		cb.probesInFlight++
	}
	return nil
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	halfOpen := cb.state == StateHalfOpen
	if halfOpen && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}

	if err == nil {
		cb.totalSuccesses++
		cb.consecutiveFails = 0
		if halfOpen {
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.cfg.HalfOpenMaxCalls {
				cb.setState(StateClosed)
				logging.WithField("circuitBreaker", cb.cfg.Name).Info("Circuit breaker closed after successful probe")
			}
		}
		return
	}

	cb.totalFailures++
	cb.consecutiveFails++

	if halfOpen || (cb.state == StateClosed && cb.consecutiveFails >= cb.cfg.ConsecutiveFailures) {
		cb.setState(StateOpen)
		logging.WithFields(map[string]interface{}{
			"circuitBreaker":   cb.cfg.Name,
			"consecutiveFails": cb.consecutiveFails,
		}).Warn("Circuit breaker opened")
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = cb.now()
	cb.probesInFlight = 0
	cb.probeSuccesses = 0
	if state == StateClosed {
		cb.consecutiveFails = 0
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	TotalFailures    int       `json:"totalFailures"`
	TotalSuccesses   int       `json:"totalSuccesses"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() *Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return &Stats{
		Name:             cb.cfg.Name,
		State:            cb.state,
		ConsecutiveFails: cb.consecutiveFails,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		LastStateChange:  cb.lastStateChange,
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	logging.WithField("circuitBreaker", cb.cfg.Name).Info("Circuit breaker manually reset")
}
