// File: internal/authwait/authwait.go

// Package authwait decides whether a replayed session actually landed on an
// authenticated page, by polling page signals until a verdict or a deadline.
package authwait

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Status is the verdict of an authentication wait.
type Status int

const (
	// StatusUnknown means the page has not yet shown a conclusive signal.
	StatusUnknown Status = iota
	// StatusAuthenticated means an authenticated-only marker was observed.
	StatusAuthenticated
	// StatusUnauthenticated means the page showed a login signal, so the
	// replayed session was rejected.
	StatusUnauthenticated
	// StatusTimedOut means the deadline passed with no conclusive signal.
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Probe inspects the live page once and reports its current verdict. Probes
// return StatusUnknown while the page is still settling; transient probe
// errors are treated the same way.
type Probe func(ctx context.Context) (Status, error)

// Wait polls probe until it returns a conclusive status or timeout elapses.
// A StatusUnauthenticated verdict short-circuits immediately rather than
// burning the rest of the deadline waiting for a marker that will never
// appear. Context cancellation surfaces as an error alongside the last
// known status.
func Wait(ctx context.Context, probe Probe, timeout, interval time.Duration) (Status, error) {
	logger := observability.GetLogger().Named("authwait")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// A probe error is retried; pages settle and execution contexts get
	// destroyed mid-navigation. Only a driver-level error still present when
	// the deadline hits is reported: a probe cut short by the wait's own
	// deadline is just a slow page, which is a timeout, never an error.
	var lastErr error
	for {
		status, err := probe(waitCtx)
		lastErr = err
		if err != nil {
			if waitCtx.Err() == nil {
				logger.Debug("Authentication probe errored, retrying.", zap.Error(err))
			}
		} else if status == StatusAuthenticated || status == StatusUnauthenticated {
			logger.Debug("Authentication wait resolved.", zap.String("status", status.String()))
			return status, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return StatusUnknown, fmt.Errorf("authentication wait cancelled: %w", ctx.Err())
			}
			if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
				return StatusUnknown, fmt.Errorf("authentication probe failing at deadline: %w", lastErr)
			}
			return StatusTimedOut, nil
		case <-ticker.C:
		}
	}
}

// PageProbe builds a Probe from page-level signals: a JS expression that is
// truthy only on authenticated pages, and a URL substring that identifies the
// login page. Either may be empty when a platform has no such signal.
func PageProbe(authenticatedJS, loginURLFragment string) Probe {
	return func(ctx context.Context) (Status, error) {
		var currentURL string
		if err := chromedp.Run(ctx, chromedp.Location(&currentURL)); err != nil {
			return StatusUnknown, err
		}
		if loginURLFragment != "" && strings.Contains(currentURL, loginURLFragment) {
			return StatusUnauthenticated, nil
		}
		if authenticatedJS == "" {
			return StatusUnknown, nil
		}
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(authenticatedJS, &ok)); err != nil {
			return StatusUnknown, err
		}
		if ok {
			return StatusAuthenticated, nil
		}
		return StatusUnknown, nil
	}
}

// SelectorProbe builds a Probe that treats the presence of one selector as
// proof of authentication and another as proof of a login page. Presence is
// checked with querySelector so the probe never blocks on a missing node.
func SelectorProbe(authenticatedSelector, loginSelector string) Probe {
	script := fmt.Sprintf(`(function() {
		if (%q && document.querySelector(%q)) { return "login"; }
		if (%q && document.querySelector(%q)) { return "authed"; }
		return "";
	})()`, loginSelector, loginSelector, authenticatedSelector, authenticatedSelector)
	return func(ctx context.Context) (Status, error) {
		var verdict string
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &verdict)); err != nil {
			return StatusUnknown, err
		}
		switch verdict {
		case "authed":
			return StatusAuthenticated, nil
		case "login":
			return StatusUnauthenticated, nil
		default:
			return StatusUnknown, nil
		}
	}
}
