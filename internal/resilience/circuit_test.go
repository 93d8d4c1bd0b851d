package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock lets breaker tests advance time without sleeping.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *testClock) {
	cb := NewCircuitBreaker(cfg)
	clock := &testClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	cb.now = clock.now
	return cb, clock
}

func failOnce(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func(_ context.Context) error {
		return eris.New("backend down")
	})
}

func TestCircuitBreaker_ClosedPassesCalls(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{})

	calls := 0
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for range 2 {
		require.Error(t, failOnce(cb))
		assert.Equal(t, CircuitClosed, cb.State())
	}
	require.Error(t, failOnce(cb))
	assert.Equal(t, CircuitOpen, cb.State())

	// Rejected without touching the backend.
	calls := 0
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	require.Error(t, failOnce(cb))
	require.NoError(t, cb.Execute(context.Background(), func(_ context.Context) error { return nil }))
	require.Error(t, failOnce(cb))
	assert.Equal(t, CircuitClosed, cb.State(), "count restarted after the success")
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, failOnce(cb))
	assert.Equal(t, CircuitOpen, cb.State())

	clock.advance(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, failOnce(cb))
	clock.advance(time.Minute)
	require.Error(t, failOnce(cb))
	assert.Equal(t, CircuitOpen, cb.State())

	// The failed probe restarts the reset window.
	clock.advance(30 * time.Second)
	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	type hop struct{ from, to CircuitState }
	var hops []hop
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(from, to CircuitState) { hops = append(hops, hop{from, to}) },
	})

	require.Error(t, failOnce(cb))
	clock.advance(time.Minute)
	require.NoError(t, cb.Execute(context.Background(), func(_ context.Context) error { return nil }))

	assert.Equal(t, []hop{
		{CircuitClosed, CircuitOpen},
		{CircuitOpen, CircuitHalfOpen},
		{CircuitHalfOpen, CircuitClosed},
	}, hops)
}

func TestCircuitBreaker_DefaultsApplied(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, 5, cb.cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.cfg.ResetTimeout)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(7, 45)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.ResetTimeout)

	cb := NewCircuitBreaker(FromCircuitConfig(0, 0))
	assert.Equal(t, 5, cb.cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.cfg.ResetTimeout)
}
