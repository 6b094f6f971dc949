// File: internal/browser/session.go

package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session is one page (tab) in the managed browser. Its context carries the
// CDP target; operations derive per-call deadlines from it with
// CombineContext so that a slow portal page cannot outlive the session.
type Session struct {
	ID          string
	ctx         context.Context
	cancel      context.CancelFunc
	extraCancel context.CancelFunc
	logger      *zap.Logger
}

// Context exposes the session's CDP-bound context for packages that drive
// chromedp directly.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close releases the page and its target.
func (s *Session) Close() {
	if s.extraCancel != nil {
		s.extraCancel()
	}
	s.cancel()
}

// RunActions executes chromedp actions under a deadline derived from both the
// session and opCtx.
func (s *Session) RunActions(opCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, opCtx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL and waits for the document body to exist.
func (s *Session) Navigate(opCtx context.Context, url string, timeout time.Duration) error {
	s.logger.Debug("Navigating.", zap.String("session_id", s.ID), zap.String("url", url))
	if err := s.RunActions(opCtx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Click waits for the selector to become visible and clicks it.
func (s *Session) Click(opCtx context.Context, selector string, timeout time.Duration) error {
	if err := s.RunActions(opCtx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

// Fill waits for an input to become visible and sets its value.
func (s *Session) Fill(opCtx context.Context, selector, value string, timeout time.Duration) error {
	if err := s.RunActions(opCtx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a JS expression on the page and decodes the result into out.
// Pass nil to discard the result. Promises are awaited before decoding.
func (s *Session) Evaluate(opCtx context.Context, expression string, out any, timeout time.Duration) error {
	opts := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	}
	var action chromedp.Action
	if out == nil {
		var discard []byte
		action = chromedp.Evaluate(expression, &discard, opts)
	} else {
		action = chromedp.Evaluate(expression, out, opts)
	}
	if err := s.RunActions(opCtx, timeout, action); err != nil {
		return fmt.Errorf("failed to evaluate expression: %w", err)
	}
	return nil
}

// ExpectPopup arms a listener for the next page the current one opens, then
// runs trigger. The returned session is attached to the popup target and must
// be closed by the caller.
func (s *Session) ExpectPopup(opCtx context.Context, timeout time.Duration, trigger func(ctx context.Context) error) (*Session, error) {
	armCtx, cancel := CombineContext(s.ctx, opCtx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		armCtx, tcancel = context.WithTimeout(armCtx, timeout)
		defer tcancel()
	}

	targetCh := chromedp.WaitNewTarget(armCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})
	if err := trigger(armCtx); err != nil {
		return nil, fmt.Errorf("popup trigger failed: %w", err)
	}

	select {
	case targetID := <-targetCh:
		popupCtx, popupCancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(targetID))
		popup := &Session{
			ID:     s.ID + "-popup",
			ctx:    popupCtx,
			cancel: popupCancel,
			logger: s.logger,
		}
		s.logger.Debug("Popup attached.", zap.String("session_id", popup.ID))
		return popup, nil
	case <-armCtx.Done():
		return nil, fmt.Errorf("no popup appeared: %w", armCtx.Err())
	}
}

// NewTab opens a sibling page in the same browser context. It satisfies the
// page-opener shape used when replaying storage across origins.
func (s *Session) NewTab(parent context.Context) (context.Context, context.CancelFunc) {
	combined, combinedCancel := CombineContext(s.ctx, parent)
	tabCtx, tabCancel := chromedp.NewContext(combined)
	return tabCtx, func() {
		tabCancel()
		combinedCancel()
	}
}
