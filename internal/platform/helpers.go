// File: internal/platform/helpers.go

package platform

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/download"
)

func waitVisibleAction(selector string) chromedp.Action {
	return chromedp.WaitVisible(selector, chromedp.ByQuery)
}

// clickLinkByTextJS builds an expression that clicks the first element
// matching selector whose text contains label, reporting whether a click
// happened. The portals render Hebrew labels with inconsistent surrounding
// whitespace, so matching is on the trimmed text.
func clickLinkByTextJS(selector, label string) string {
	return fmt.Sprintf(`(function() {
		const links = document.querySelectorAll(%q);
		for (const link of links) {
			if (link.textContent.trim().includes(%q)) {
				link.click();
				return true;
			}
		}
		return false;
	})()`, selector, label)
}

// popupAttach arms a watcher for the next popup the session opens and wraps
// it as an attach func for the blob strategy. Arming happens here, before the
// triggering click, so the popup cannot be missed.
func popupAttach(session *browser.Session) download.AttachFunc {
	targetCh := chromedp.WaitNewTarget(session.Context(), func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})
	return func(ctx context.Context) (context.Context, context.CancelFunc, error) {
		select {
		case targetID := <-targetCh:
			popupCtx, popupCancel := chromedp.NewContext(session.Context(), chromedp.WithTargetID(targetID))
			return popupCtx, popupCancel, nil
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("no viewer popup appeared: %w", ctx.Err())
		}
	}
}
