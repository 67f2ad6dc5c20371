package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, Timeout: time.Hour})
	ctx := context.Background()

	calls := 0
	failing := func() error { calls++; return errBoom }

	assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	assert.Equal(t, "open", cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, failing), ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit must not invoke fn")

	m := cb.Metrics()
	assert.Equal(t, uint64(3), m.TotalRequests)
	assert.Equal(t, uint64(3), m.TotalFailures)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 1, Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	require.Equal(t, "open", cb.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "half-open", cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	_ = cb.Execute(ctx, func() error { return errBoom })

	assert.Equal(t, "closed", cb.State())
	assert.Equal(t, uint32(1), cb.Metrics().ConsecutiveFailures)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
