// File: internal/authstate/capture.go

package authstate

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

const storageDumpJS = `(function() {
	const result = { origin: location.origin, localStorage: {}, sessionStorage: {} };
	try { if (window.localStorage) { Object.assign(result.localStorage, localStorage); } } catch (e) {}
	try { if (window.sessionStorage) { Object.assign(result.sessionStorage, sessionStorage); } } catch (e) {}
	return result;
})()`

// Capturer snapshots the authentication state of a live browser session.
type Capturer struct {
	logger *zap.Logger
}

func NewCapturer() *Capturer {
	return &Capturer{logger: observability.GetLogger().Named("authstate")}
}

// Cookies retrieves all cookies of the browser context the chromedp context
// belongs to.
func (c *Capturer) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(cctx context.Context) (err error) {
		raw, err = storage.GetCookies().Do(cctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  ck.Expires,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}
	return cookies, nil
}

// PageStorage dumps the localStorage and sessionStorage of the page the
// context is attached to, keyed by that page's origin. Storage access can be
// denied on opaque origins; those dumps come back empty rather than failing.
func (c *Capturer) PageStorage(ctx context.Context) (*OriginState, error) {
	var dump struct {
		Origin         string            `json:"origin"`
		LocalStorage   map[string]string `json:"localStorage"`
		SessionStorage map[string]string `json:"sessionStorage"`
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(storageDumpJS, &dump)); err != nil {
		return nil, fmt.Errorf("failed to dump page storage: %w", err)
	}
	if dump.Origin == "" || dump.Origin == "null" {
		return nil, fmt.Errorf("page has no usable origin for storage capture")
	}
	return &OriginState{
		Origin:         dump.Origin,
		LocalStorage:   entriesFromMap(dump.LocalStorage),
		SessionStorage: entriesFromMap(dump.SessionStorage),
	}, nil
}

// Snapshot captures a complete session document from the live page: every
// cookie in the browser context plus the storage of the current page's
// origin. A cookie failure aborts the snapshot; a storage failure degrades to
// a cookie-only document with a warning, since some portals authenticate on
// cookies alone.
func (c *Capturer) Snapshot(ctx context.Context) (*Session, error) {
	cookies, err := c.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	session := &Session{Cookies: cookies}

	pageState, err := c.PageStorage(ctx)
	if err != nil {
		c.logger.Warn("Captured cookies but not page storage, session may be partial.", zap.Error(err))
		return session, nil
	}
	state := session.UpsertOrigin(pageState.Origin)
	state.LocalStorage = pageState.LocalStorage
	state.SessionStorage = pageState.SessionStorage

	c.logger.Debug("Captured session snapshot",
		zap.Int("cookies", len(session.Cookies)),
		zap.String("origin", pageState.Origin),
		zap.Int("localStorage", len(pageState.LocalStorage)),
		zap.Int("sessionStorage", len(pageState.SessionStorage)))
	return session, nil
}

// SnapshotOrigins extends a current-page snapshot with the localStorage of
// additional origins, each visited in its own tab. Session-scoped storage
// only exists in the tab that wrote it, so extra origins contribute
// localStorage alone. A failed origin degrades the document with a warning
// rather than failing the capture.
func (c *Capturer) SnapshotOrigins(ctx context.Context, open PageOpener, origins []string) (*Session, error) {
	session, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	for _, origin := range origins {
		if session.Origin(origin) != nil {
			continue
		}
		state, err := c.captureOriginInTab(ctx, open, origin)
		if err != nil {
			c.logger.Warn("Could not capture storage for origin, session may be partial.",
				zap.String("origin", origin), zap.Error(err))
			continue
		}
		stored := session.UpsertOrigin(origin)
		stored.LocalStorage = state.LocalStorage
	}
	return session, nil
}

func (c *Capturer) captureOriginInTab(ctx context.Context, open PageOpener, origin string) (*OriginState, error) {
	tabCtx, cancel := open(ctx)
	defer cancel()
	if err := chromedp.Run(tabCtx, chromedp.Navigate(origin)); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", origin, err)
	}
	return c.PageStorage(tabCtx)
}
