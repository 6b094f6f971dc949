// File: internal/download/fetch_test.go

package download

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollForBlobURLReloadsUntilBlobAppears(t *testing.T) {
	var reloads int
	location := func() (string, error) {
		if reloads >= 2 {
			return "blob:https://viewer.example/abc-123", nil
		}
		return "about:blank", nil
	}
	reload := func() error {
		reloads++
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pollForBlobURL(ctx, time.Millisecond, location, reload))
	assert.GreaterOrEqual(t, reloads, 2, "viewer stuck on its shell page needs reloads before the blob appears")
}

func TestPollForBlobURLTimesOutOnStuckViewer(t *testing.T) {
	location := func() (string, error) { return "about:blank", nil }
	reload := func() error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := pollForBlobURL(ctx, 5*time.Millisecond, location, reload)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollForBlobURLSurfacesReloadFailure(t *testing.T) {
	location := func() (string, error) { return "about:blank", nil }
	reload := func() error { return assert.AnError }

	err := pollForBlobURL(context.Background(), time.Millisecond, location, reload)
	assert.ErrorIs(t, err, assert.AnError)
}
