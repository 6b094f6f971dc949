// File: internal/authwait/authwait_test.go

package authwait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWaitAuthenticatedAfterSettling(t *testing.T) {
	calls := 0
	probe := func(ctx context.Context) (Status, error) {
		calls++
		if calls < 3 {
			return StatusUnknown, nil
		}
		return StatusAuthenticated, nil
	}

	status, err := Wait(context.Background(), probe, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, status)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWaitUnauthenticatedShortCircuits(t *testing.T) {
	probe := func(ctx context.Context) (Status, error) {
		return StatusUnauthenticated, nil
	}

	start := time.Now()
	status, err := Wait(context.Background(), probe, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusUnauthenticated, status)
	assert.Less(t, time.Since(start), time.Second, "login signal should not wait out the deadline")
}

func TestWaitTimesOut(t *testing.T) {
	probe := func(ctx context.Context) (Status, error) {
		return StatusUnknown, nil
	}

	status, err := Wait(context.Background(), probe, 30*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, status)
}

func TestWaitRetriesThroughProbeErrors(t *testing.T) {
	calls := 0
	probe := func(ctx context.Context) (Status, error) {
		calls++
		if calls == 1 {
			return StatusUnknown, errors.New("execution context destroyed")
		}
		return StatusAuthenticated, nil
	}

	status, err := Wait(context.Background(), probe, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, status)
}

func TestWaitTimesOutWhenProbeBlocksUntilDeadline(t *testing.T) {
	// A slow page can hold an evaluate call until the wait's own deadline
	// cuts it off. That is a timeout, not a driver failure.
	probe := func(ctx context.Context) (Status, error) {
		<-ctx.Done()
		return StatusUnknown, ctx.Err()
	}

	status, err := Wait(context.Background(), probe, 50*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, status)
}

func TestWaitPersistentProbeErrorSurfaces(t *testing.T) {
	probeErr := errors.New("target closed")
	probe := func(ctx context.Context) (Status, error) {
		return StatusUnknown, probeErr
	}

	status, err := Wait(context.Background(), probe, 30*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, probeErr)
	assert.Equal(t, StatusUnknown, status)
}

func TestWaitCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	probe := func(ctx context.Context) (Status, error) {
		cancel()
		return StatusUnknown, nil
	}

	status, err := Wait(ctx, probe, time.Second, 5*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusUnknown, status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "unauthenticated", StatusUnauthenticated.String())
	assert.Equal(t, "timed_out", StatusTimedOut.String())
	assert.Equal(t, "unknown", StatusUnknown.String())
}
