package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	CLOSED    = 0
	OPEN      = 1
	HALF_OPEN = 2
)

const (
	breakerFailureThreshold = 5
	breakerTimeout          = 5 * time.Minute
)

// CircuitBreaker guards an external delivery channel. After repeated
// failures it rejects sends until the timeout passes, then lets one
// probe through.
type CircuitBreaker struct {
	name            string
	state           int
	failureCount    int
	lastFailureTime time.Time
	mutex           sync.Mutex
	log             *logrus.Logger
}

func NewCircuitBreaker(name string, log *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:  name,
		state: CLOSED,
		log:   log,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.canExecute() {
		return fmt.Errorf("circuit breaker open for %s", cb.name)
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case CLOSED:
		return true
	case OPEN:
		if time.Since(cb.lastFailureTime) > breakerTimeout {
			cb.state = HALF_OPEN
			return true
		}
		return false
	case HALF_OPEN:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.state == CLOSED && cb.failureCount >= breakerFailureThreshold {
		cb.state = OPEN
		cb.log.Warnf("Circuit breaker opened for %s after %d failures", cb.name, cb.failureCount)
	}

	if cb.state == HALF_OPEN {
		cb.state = OPEN
		cb.failureCount = breakerFailureThreshold
		cb.log.Warnf("Circuit breaker reopened for %s from half-open state", cb.name)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0

	if cb.state == HALF_OPEN {
		cb.state = CLOSED
		cb.log.Infof("Circuit breaker closed for %s (recovered)", cb.name)
	}
}
