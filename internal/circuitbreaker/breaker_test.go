package circuitbreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	cb := New("market", 3)
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")
	assert.True(t, cb.Allow())
	assert.NoError(t, cb.Check())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.GetState(), "Two failures stay below the threshold")
	assert.Equal(t, 2, cb.Failures())

	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Failures(), "Success clears consecutive failures")
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := New("market", 3)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
	assert.ErrorIs(t, cb.Check(), ErrOpen)
}

func TestCircuitBreaker_StaysOpen(t *testing.T) {
	cb := New("market", 1)
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, StateOpen, cb.GetState(), "A late success does not close the circuit")
	assert.Equal(t, 1, cb.Failures())
}

func TestCircuitBreaker_InterleavedSuccessResetsByDefault(t *testing.T) {
	cb := New("market", 3)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
		cb.RecordSuccess()
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_CumulativeFailures(t *testing.T) {
	cb := New("market", 3).WithCumulativeFailures()

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 2, cb.Failures(), "Successes do not clear the total")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Check(), ErrOpen)
}

func TestCircuitBreaker_TripCallback(t *testing.T) {
	var calls []int
	cb := New("market", 2).WithTripCallback(func(name string, failures int) {
		assert.Equal(t, "market", name)
		calls = append(calls, failures)
	})

	cb.RecordFailure()
	assert.Empty(t, calls)
	cb.RecordFailure()
	// Runs before RecordFailure returns
	assert.Equal(t, []int{2}, calls)

	cb.RecordFailure()
	assert.Equal(t, []int{2}, calls, "Callback fires once per trip")
}

func TestCircuitBreaker_TripCallbackMayQueryBreaker(t *testing.T) {
	var cb *CircuitBreaker
	var state State
	cb = New("market", 1).WithTripCallback(func(string, int) {
		state = cb.GetState()
	})

	cb.RecordFailure()
	assert.Equal(t, StateOpen, state)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
