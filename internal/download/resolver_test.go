// File: internal/download/resolver_test.go

package download

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStrategy resolves after a fixed delay with either a path or an error.
type fakeStrategy struct {
	name    string
	delay   time.Duration
	path    string
	err     error
	armErr  error
	armed   atomic.Bool
	started atomic.Bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Arm(ctx context.Context) error {
	f.armed.Store(true)
	return f.armErr
}

func (f *fakeStrategy) Collect(ctx context.Context) (string, error) {
	f.started.Store(true)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func noopTrigger(ctx context.Context) error { return nil }

func TestAcquireFirstSuccessWins(t *testing.T) {
	fast := &fakeStrategy{name: "fast", delay: 50 * time.Millisecond, path: "/tmp/fast.pdf"}
	slow := &fakeStrategy{name: "slow", delay: 200 * time.Millisecond, path: "/tmp/slow.pdf"}

	outcome, err := NewResolver().Acquire(context.Background(), 2*time.Second, noopTrigger, slow, fast)
	require.NoError(t, err)
	assert.Equal(t, "fast", outcome.Strategy)
	assert.Equal(t, "/tmp/fast.pdf", outcome.Path)
}

func TestAcquireWinnerAfterLoserFails(t *testing.T) {
	failing := &fakeStrategy{name: "failing", delay: 10 * time.Millisecond, err: errors.New("no download event")}
	winner := &fakeStrategy{name: "winner", delay: 80 * time.Millisecond, path: "/tmp/out.pdf"}

	outcome, err := NewResolver().Acquire(context.Background(), 2*time.Second, noopTrigger, failing, winner)
	require.NoError(t, err)
	assert.Equal(t, "winner", outcome.Strategy)
}

func TestAcquireAllStrategiesFail(t *testing.T) {
	a := &fakeStrategy{name: "event", delay: 5 * time.Millisecond, err: errors.New("no download event")}
	b := &fakeStrategy{name: "blob", delay: 5 * time.Millisecond, err: errors.New("no blob URL")}

	_, err := NewResolver().Acquire(context.Background(), 2*time.Second, noopTrigger, a, b)
	var raceErr *RaceError
	require.ErrorAs(t, err, &raceErr)
	assert.Len(t, raceErr.Failures, 2)
	assert.Contains(t, raceErr.Error(), "no download event")
	assert.Contains(t, raceErr.Error(), "no blob URL")
}

func TestAcquireTimesOut(t *testing.T) {
	stuck := &fakeStrategy{name: "stuck", delay: time.Hour, path: "/never"}

	start := time.Now()
	_, err := NewResolver().Acquire(context.Background(), 50*time.Millisecond, noopTrigger, stuck)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAcquireArmFailureExcludesStrategy(t *testing.T) {
	broken := &fakeStrategy{name: "broken", armErr: errors.New("cannot set download behavior")}
	ok := &fakeStrategy{name: "ok", delay: 10 * time.Millisecond, path: "/tmp/ok.pdf"}

	outcome, err := NewResolver().Acquire(context.Background(), time.Second, noopTrigger, broken, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", outcome.Strategy)
	assert.True(t, broken.armed.Load())
	assert.False(t, broken.started.Load(), "a strategy that failed to arm must not collect")
}

func TestAcquireNoArmableStrategy(t *testing.T) {
	broken := &fakeStrategy{name: "broken", armErr: errors.New("boom")}

	_, err := NewResolver().Acquire(context.Background(), time.Second, noopTrigger, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no download strategy could be armed")
}

func TestAcquireTriggerFailureAborts(t *testing.T) {
	s := &fakeStrategy{name: "s", delay: 10 * time.Millisecond, path: "/tmp/x.pdf"}
	trigger := func(ctx context.Context) error { return errors.New("click failed") }

	_, err := NewResolver().Acquire(context.Background(), time.Second, trigger, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download trigger failed")
	assert.False(t, s.started.Load())
}

func TestAcquireArmsBeforeTrigger(t *testing.T) {
	s := &fakeStrategy{name: "s", delay: 10 * time.Millisecond, path: "/tmp/x.pdf"}
	trigger := func(ctx context.Context) error {
		if !s.armed.Load() {
			return errors.New("trigger fired before arming")
		}
		return nil
	}

	_, err := NewResolver().Acquire(context.Background(), time.Second, trigger, s)
	require.NoError(t, err)
}

func TestAcquireCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stuck := &fakeStrategy{name: "stuck", delay: time.Hour}

	_, err := NewResolver().Acquire(ctx, time.Second, noopTrigger, stuck)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
