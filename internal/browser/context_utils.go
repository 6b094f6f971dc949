// File: internal/browser/context_utils.go

package browser

import "context"

// CombineContext derives a context from primary that is also cancelled when
// secondary is cancelled. chromedp operations need this because the session
// context carries the CDP target while a per-operation context carries the
// deadline; deriving from primary keeps the CDP values.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
