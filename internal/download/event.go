// File: internal/download/event.go

package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/observability"
)

// EventStrategy captures a native browser download. Downloads are forced into
// a staging directory under a CDP-assigned GUID name, watched through the
// download lifecycle events, and renamed to the destination on completion.
type EventStrategy struct {
	pageCtx context.Context
	stage   string
	dest    string
	logger  *zap.Logger

	guids     chan string
	completed chan string
	failed    chan error

	stopListen context.CancelFunc
}

// NewEventStrategy stages downloads in stageDir and delivers the finished
// file at dest. pageCtx must be the chromedp context of the page whose click
// starts the download.
func NewEventStrategy(pageCtx context.Context, stageDir, dest string) *EventStrategy {
	return &EventStrategy{
		pageCtx:   pageCtx,
		stage:     stageDir,
		dest:      dest,
		logger:    observability.GetLogger().Named("download"),
		guids:     make(chan string, 1),
		completed: make(chan string, 1),
		failed:    make(chan error, 1),
	}
}

func (s *EventStrategy) Name() string { return "download-event" }

// Arm redirects downloads into the staging directory and subscribes to the
// browser-level download events. It must complete before the triggering
// click, or the browser opens the PDF inline instead of downloading it.
func (s *EventStrategy) Arm(ctx context.Context) error {
	if err := os.MkdirAll(s.stage, 0o755); err != nil {
		return fmt.Errorf("failed to create download staging dir: %w", err)
	}
	err := chromedp.Run(s.pageCtx, chromedp.ActionFunc(func(cctx context.Context) error {
		return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(s.stage).
			WithEventsEnabled(true).
			Do(cctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set download behavior: %w", err)
	}

	// The page context outlives the race. Listening on a combined context
	// instead lets chromedp drop the handler when this attempt ends, so
	// repeated races on the same page do not pile up stale listeners.
	listenCtx, stop := browser.CombineContext(s.pageCtx, ctx)
	s.stopListen = stop
	chromedp.ListenBrowser(listenCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			s.logger.Debug("Download began.",
				zap.String("guid", e.GUID),
				zap.String("url", e.URL),
				zap.String("suggested_filename", e.SuggestedFilename))
			select {
			case s.guids <- e.GUID:
			default:
			}
		case *cdpbrowser.EventDownloadProgress:
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				select {
				case s.completed <- e.GUID:
				default:
				}
			case cdpbrowser.DownloadProgressStateCanceled:
				select {
				case s.failed <- fmt.Errorf("browser canceled download %s", e.GUID):
				default:
				}
			}
		}
	})
	return nil
}

// Collect waits for the download to finish and moves the staged file to its
// destination.
func (s *EventStrategy) Collect(ctx context.Context) (string, error) {
	if s.stopListen != nil {
		defer s.stopListen()
	}

	var guid string
	select {
	case guid = <-s.guids:
	case err := <-s.failed:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("no download event observed: %w", ctx.Err())
	}

	select {
	case completedGUID := <-s.completed:
		if completedGUID != guid {
			return "", fmt.Errorf("completed download %s does not match started download %s", completedGUID, guid)
		}
	case err := <-s.failed:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("download %s never completed: %w", guid, ctx.Err())
	}

	staged := filepath.Join(s.stage, guid)
	if err := os.MkdirAll(filepath.Dir(s.dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}
	if err := os.Rename(staged, s.dest); err != nil {
		return "", fmt.Errorf("failed to move downloaded file into place: %w", err)
	}
	return s.dest, nil
}
