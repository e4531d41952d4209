package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/crossover-go/internal/utils"
)

// Operation names with registered retry policies.
const (
	OperationMarketDataFetch = "market_data_fetch"
	OperationDatabase        = "database_operation"
	OperationRedis           = "redis_operation"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// ErrorRecoveryManager retries transient failures of named operations and
// guards them with optional circuit breakers.
type ErrorRecoveryManager struct {
	logger          *logrus.Logger
	circuitBreakers map[string]*CircuitBreaker
	retryPolicies   map[string]*RetryPolicy
	mu              sync.RWMutex
}

// NewErrorRecoveryManager creates a manager preloaded with DefaultRetryPolicies.
func NewErrorRecoveryManager(logger *logrus.Logger) *ErrorRecoveryManager {
	return &ErrorRecoveryManager{
		logger:          logger,
		circuitBreakers: make(map[string]*CircuitBreaker),
		retryPolicies:   DefaultRetryPolicies(),
	}
}

// RegisterCircuitBreaker registers a circuit breaker for a specific operation
func (erm *ErrorRecoveryManager) RegisterCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	cb := NewCircuitBreaker(name, config, erm.logger)
	erm.circuitBreakers[name] = cb
	return cb
}

// RegisterRetryPolicy registers a retry policy for a specific operation
func (erm *ErrorRecoveryManager) RegisterRetryPolicy(name string, policy *RetryPolicy) {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	erm.retryPolicies[name] = policy
}

// CircuitBreakerStatus reports the state of every registered breaker.
func (erm *ErrorRecoveryManager) CircuitBreakerStatus() map[string]string {
	erm.mu.RLock()
	defer erm.mu.RUnlock()

	status := make(map[string]string, len(erm.circuitBreakers))
	for name, cb := range erm.circuitBreakers {
		status[name] = cb.GetState().String()
	}
	return status
}

// ExecuteWithRetry runs operation until it succeeds, the policy is exhausted
// or ctx is done. Invalid-input, insufficient-data and open-circuit errors
// are returned immediately.
func (erm *ErrorRecoveryManager) ExecuteWithRetry(
	ctx context.Context,
	operationName string,
	operation func() error,
) error {
	start := time.Now()

	erm.mu.RLock()
	retryPolicy := erm.retryPolicies[operationName]
	cb := erm.circuitBreakers[operationName]
	erm.mu.RUnlock()

	if retryPolicy == nil {
		retryPolicy = &RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		}
	}

	run := operation
	if cb != nil {
		run = func() error {
			return cb.Execute(ctx, func(context.Context) error { return operation() })
		}
	}

	delay := retryPolicy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= retryPolicy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := run()
		if err == nil {
			if attempt > 0 {
				erm.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err
		if !isRetryable(err) || attempt == retryPolicy.MaxRetries {
			break
		}

		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     delay,
		}).Warn("Operation failed, retrying")

		timer := time.NewTimer(calculateDelay(delay, retryPolicy))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * retryPolicy.BackoffFactor)
		if delay > retryPolicy.MaxDelay {
			delay = retryPolicy.MaxDelay
		}
	}

	erm.logger.WithFields(logrus.Fields{
		"operation": operationName,
		"duration":  time.Since(start),
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")

	return lastErr
}

func isRetryable(err error) bool {
	return !utils.IsInvalidInput(err) && !utils.IsInsufficientData(err) && !errors.Is(err, ErrCircuitOpen)
}

// calculateDelay adds up to +/-12.5% jitter when enabled.
func calculateDelay(baseDelay time.Duration, policy *RetryPolicy) time.Duration {
	if !policy.JitterEnabled || baseDelay <= 0 {
		return baseDelay
	}
	jitter := time.Duration(float64(baseDelay) * 0.25 * (rand.Float64() - 0.5))
	return baseDelay + jitter
}

// DefaultRetryPolicies returns default retry policies for common operations
func DefaultRetryPolicies() map[string]*RetryPolicy {
	return map[string]*RetryPolicy{
		OperationMarketDataFetch: {
			MaxRetries:    3,
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		OperationDatabase: {
			MaxRetries:    2,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
		OperationRedis: {
			MaxRetries:    1,
			InitialDelay:  25 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: false,
		},
	}
}
