package chainconn

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is one of the three circuit breaker states.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 60 * time.Second
)

// circuitBreaker guards a single RPC endpoint. Five consecutive failures
// open the circuit; after the timeout elapses it turns half-open, where a
// success closes it and a failure opens it again. canAttempt does not
// limit half-open to a single caller: every call is let through until an
// outcome is recorded.
type circuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	timeout          time.Duration
	failureCount     int
	state            CircuitState
	lastFailureTime  time.Time
	logger           *zap.Logger
	endpoint         string
}

func newCircuitBreaker(endpoint string, logger *zap.Logger) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: defaultFailureThreshold,
		timeout:          defaultOpenTimeout,
		state:            CircuitClosed,
		logger:           logger,
		endpoint:         endpoint,
	}
}

func (c *circuitBreaker) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount = 0
	if c.state == CircuitHalfOpen {
		c.state = CircuitClosed
		c.logger.Info("circuit breaker closed", zap.String("endpoint", c.endpoint))
	}
}

func (c *circuitBreaker) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.lastFailureTime = time.Now()

	if c.state == CircuitHalfOpen || (c.failureCount >= c.failureThreshold && c.state == CircuitClosed) {
		c.state = CircuitOpen
		c.logger.Warn("circuit breaker opened",
			zap.String("endpoint", c.endpoint),
			zap.Int("failure_count", c.failureCount))
	}
}

func (c *circuitBreaker) canAttempt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(c.lastFailureTime) >= c.timeout {
			c.state = CircuitHalfOpen
			c.logger.Info("circuit breaker half-open", zap.String("endpoint", c.endpoint))
			return true
		}
		return false
	default: // half-open: let calls through until a trial's outcome is recorded
		return true
	}
}

func (c *circuitBreaker) currentState() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
