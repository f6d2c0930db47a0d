package healthcheck

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProbe = errors.New("probe failed")

func failingCall() (interface{}, error) { return nil, errProbe }

func succeedingCall() (interface{}, error) { return "ok", nil }

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", DefaultCircuitBreakerConfig())

	for i := 0; i < 10; i++ {
		result, err := cb.Execute(succeedingCall)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	}

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerOpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(failingCall)
		assert.ErrorIs(t, err, errProbe)
	}

	assert.Equal(t, StateOpen, cb.GetState())

	_, err := cb.Execute(succeedingCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})

	cb.Execute(failingCall)
	cb.Execute(failingCall)
	cb.Execute(succeedingCall)
	cb.Execute(failingCall)
	cb.Execute(failingCall)

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		MaxRequests:      5,
	})

	cb.Execute(failingCall)
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	_, err := cb.Execute(succeedingCall)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.GetState())

	_, err = cb.Execute(succeedingCall)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	cb.Execute(failingCall)
	time.Sleep(20 * time.Millisecond)

	_, err := cb.Execute(failingCall)
	assert.ErrorIs(t, err, errProbe)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerNotifiesStateChanges(t *testing.T) {
	type transition struct {
		from, to CircuitBreakerState
	}
	var transitions []transition

	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		OnStateChange: func(name string, from, to CircuitBreakerState) {
			transitions = append(transitions, transition{from, to})
		},
	})

	cb.Execute(failingCall)
	time.Sleep(20 * time.Millisecond)
	cb.Execute(succeedingCall)

	require.Len(t, transitions, 3)
	assert.Equal(t, transition{StateClosed, StateOpen}, transitions[0])
	assert.Equal(t, transition{StateOpen, StateHalfOpen}, transitions[1])
	assert.Equal(t, transition{StateHalfOpen, StateClosed}, transitions[2])
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Minute,
	})

	cb.Execute(failingCall)
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())

	_, err := cb.Execute(succeedingCall)
	assert.NoError(t, err)
}