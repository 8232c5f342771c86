// Package circuitbreaker stops calls to an upstream endpoint after repeated
// failures so a session can fall back to local estimates instead.
package circuitbreaker

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed State = iota // Normal operation
	StateOpen                // Tripped, no new calls allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// ErrOpen is returned by Check while the circuit is open.
var ErrOpen = errors.New("circuit breaker open: upstream protection engaged")

// CircuitBreaker counts failures of a named endpoint. Once open it stays open
// for the lifetime of the breaker, so callers scope one breaker to one unit of
// work such as a sync session.
type CircuitBreaker struct {
	name string

	// Failures that trip the circuit
	failureThreshold int

	// Keep counting across successful calls instead of resetting on success
	cumulative bool

	state    State
	failures int

	mu sync.Mutex

	onTripCallback func(name string, failures int)
}

// New creates a closed breaker that trips after failureThreshold consecutive failures.
func New(name string, failureThreshold int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		state:            StateClosed,
	}
}

// WithCumulativeFailures makes the breaker trip on the total number of
// failures. Successful calls no longer clear the count.
func (cb *CircuitBreaker) WithCumulativeFailures() *CircuitBreaker {
	cb.cumulative = true
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips.
// It runs on the goroutine that recorded the tripping failure.
func (cb *CircuitBreaker) WithTripCallback(callback func(name string, failures int)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Allow reports whether a call may be attempted.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateClosed
}

// Check is Allow expressed as an error.
func (cb *CircuitBreaker) Check() error {
	if !cb.Allow() {
		return ErrOpen
	}
	return nil
}

// RecordFailure counts a failed call and trips the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failures++
	tripped := cb.state == StateClosed && cb.failures >= cb.failureThreshold
	if tripped {
		cb.trip()
	}
	failures := cb.failures
	callback := cb.onTripCallback
	cb.mu.Unlock()

	if tripped && callback != nil {
		callback(cb.name, failures)
	}
}

// RecordSuccess clears the failure count unless the breaker counts cumulatively.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cumulative && cb.state == StateClosed {
		cb.failures = 0
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// trip opens the circuit. Callers hold cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	logrus.WithFields(logrus.Fields{
		"breaker":  cb.name,
		"failures": cb.failures,
	}).Warn("Circuit breaker tripped")
}
