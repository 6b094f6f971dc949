// File: internal/download/fetch.go

package download

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// blobReadJS fetches the page's own blob URL and hands the bytes back as
// base64. FileReader is the only blob readback that works across the portal
// viewers, which predate Blob.arrayBuffer.
const blobReadJS = `(async () => {
	const resp = await fetch(location.href);
	const blob = await resp.blob();
	return await new Promise((resolve, reject) => {
		const reader = new FileReader();
		reader.onloadend = () => resolve(reader.result.split(',')[1]);
		reader.onerror = () => reject(reader.error);
		reader.readAsDataURL(blob);
	});
})()`

// AttachFunc blocks until the viewer popup exists and returns a chromedp
// context attached to it. The cancel func releases the attachment.
type AttachFunc func(ctx context.Context) (context.Context, context.CancelFunc, error)

// BlobStrategy extracts a PDF from a viewer popup that renders the document
// from an in-memory blob URL. The bytes never hit the network as a download,
// so they are read out of the page itself.
type BlobStrategy struct {
	attach AttachFunc
	dest   string
	poll   time.Duration
	logger *zap.Logger
}

func NewBlobStrategy(attach AttachFunc, dest string, poll time.Duration) *BlobStrategy {
	return &BlobStrategy{
		attach: attach,
		dest:   dest,
		poll:   poll,
		logger: observability.GetLogger().Named("download"),
	}
}

func (s *BlobStrategy) Name() string { return "blob-fetch" }

// Arm is a no-op; the popup watcher is armed by whoever built the AttachFunc.
func (s *BlobStrategy) Arm(ctx context.Context) error { return nil }

// Collect attaches to the popup, waits for its blob URL, reads the document
// bytes out of the page, and writes them to the destination atomically.
func (s *BlobStrategy) Collect(ctx context.Context) (string, error) {
	popupCtx, release, err := s.attach(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to attach to viewer popup: %w", err)
	}
	defer release()

	if err := s.waitForBlobURL(ctx, popupCtx); err != nil {
		return "", err
	}

	var encoded string
	err = chromedp.Run(popupCtx, chromedp.Evaluate(blobReadJS, &encoded,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		}))
	if err != nil {
		return "", fmt.Errorf("failed to read blob from viewer: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("viewer returned undecodable document data: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("viewer returned an empty document")
	}

	if err := os.MkdirAll(filepath.Dir(s.dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.dest), ".blob.*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp download file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close document file: %w", err)
	}
	if err := os.Rename(tmpName, s.dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move document into place: %w", err)
	}

	s.logger.Debug("Extracted document from viewer blob.",
		zap.String("path", s.dest), zap.Int("bytes", len(data)))
	return s.dest, nil
}

// waitForBlobURL polls the popup until its location becomes a blob URL. The
// viewer first loads an about:blank shell and only swaps the blob in once the
// document is generated server-side; some viewers never swap without a
// reload, so each miss reloads the popup before the next look.
func (s *BlobStrategy) waitForBlobURL(ctx, popupCtx context.Context) error {
	location := func() (string, error) {
		var current string
		err := chromedp.Run(popupCtx, chromedp.Location(&current))
		return current, err
	}
	reload := func() error {
		return chromedp.Run(popupCtx, chromedp.Reload())
	}
	return pollForBlobURL(ctx, s.poll, location, reload)
}

func pollForBlobURL(ctx context.Context, interval time.Duration, location func() (string, error), reload func() error) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if current, err := location(); err == nil && strings.HasPrefix(current, "blob:") {
			return nil
		}
		if err := reload(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("failed to reload viewer popup: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("viewer never produced a blob URL: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
