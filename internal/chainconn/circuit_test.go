package chainconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker("http://node", zap.NewNop())

	for i := 0; i < defaultFailureThreshold-1; i++ {
		cb.recordFailure()
		assert.Equal(t, CircuitClosed, cb.currentState())
	}
	cb.recordFailure()
	assert.Equal(t, CircuitOpen, cb.currentState())
	assert.False(t, cb.canAttempt())
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := newCircuitBreaker("http://node", zap.NewNop())
	cb.timeout = 10 * time.Millisecond

	for i := 0; i < defaultFailureThreshold; i++ {
		cb.recordFailure()
	}
	assert.Equal(t, CircuitOpen, cb.currentState())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, cb.canAttempt())
	assert.Equal(t, CircuitHalfOpen, cb.currentState())
}

func TestCircuitBreaker_ClosesOnSuccessFromHalfOpen(t *testing.T) {
	cb := newCircuitBreaker("http://node", zap.NewNop())
	cb.timeout = time.Millisecond

	for i := 0; i < defaultFailureThreshold; i++ {
		cb.recordFailure()
	}
	time.Sleep(2 * time.Millisecond)
	canAttempt := cb.canAttempt()
	assert.True(t, canAttempt)
	assert.Equal(t, CircuitHalfOpen, cb.currentState())

	cb.recordSuccess()
	assert.Equal(t, CircuitClosed, cb.currentState())
	assert.Equal(t, 0, cb.failureCount)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newCircuitBreaker("http://node", zap.NewNop())
	cb.recordFailure()
	cb.recordFailure()
	cb.recordSuccess()
	assert.Equal(t, 0, cb.failureCount)
	assert.Equal(t, CircuitClosed, cb.currentState())
}
