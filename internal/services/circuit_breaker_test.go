package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream error")

func failing(context.Context) error   { return errUpstream }
func succeeding(context.Context) error { return nil }

func newTestBreaker(config CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker("test", config, quietLogger())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("defaults", CircuitBreakerConfig{}, quietLogger())

	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 1, cb.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cb.config.Timeout)
	assert.Equal(t, Closed, cb.GetState())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	}
	assert.Equal(t, Open, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.GetStats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, succeeding))
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, Closed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.Equal(t, Open, cb.GetState())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, HalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, Closed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	*now = now.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errUpstream)
	assert.Equal(t, Open, cb.GetState())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	_ = cb.Execute(context.Background(), failing)
	require.Equal(t, Open, cb.GetState())

	cb.Reset()
	assert.Equal(t, Closed, cb.GetState())
	assert.NoError(t, cb.Execute(context.Background(), succeeding))
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}
