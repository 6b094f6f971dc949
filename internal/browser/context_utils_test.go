// File: internal/browser/context_utils_test.go

package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type ctxKey string

func TestCombineContextInheritsPrimaryValues(t *testing.T) {
	defer goleak.VerifyNone(t)

	primary := context.WithValue(context.Background(), ctxKey("target"), "page-1")
	secondary := context.Background()

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	assert.Equal(t, "page-1", combined.Value(ctxKey("target")))
}

func TestCombineContextCancelledBySecondary(t *testing.T) {
	defer goleak.VerifyNone(t)

	secondary, cancelSecondary := context.WithCancel(context.Background())
	combined, cancel := CombineContext(context.Background(), secondary)
	defer cancel()

	cancelSecondary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not cancelled by secondary")
	}
}

func TestCombineContextCancelledByPrimary(t *testing.T) {
	defer goleak.VerifyNone(t)

	primary, cancelPrimary := context.WithCancel(context.Background())
	combined, cancel := CombineContext(primary, context.Background())
	defer cancel()

	cancelPrimary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not cancelled by primary")
	}
}

func TestCombineContextDirectCancelStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	combined, cancel := CombineContext(context.Background(), context.Background())
	cancel()

	require.Eventually(t, func() bool {
		select {
		case <-combined.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
