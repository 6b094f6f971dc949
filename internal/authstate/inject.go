// File: internal/authstate/inject.go

package authstate

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Injector restores a persisted session document into a live browser context.
//
// Cookies are applied at the CDP level before any navigation. Storage entries
// can only be written from a page running on the owning origin, so seeding
// happens after navigation, one page per origin.
type Injector struct {
	logger *zap.Logger
}

func NewInjector() *Injector {
	return &Injector{logger: observability.GetLogger().Named("authstate")}
}

// ApplyCookies installs all persisted cookies into the browser context. This
// must run before the first navigation so that the initial page load already
// carries the authenticated cookies.
func (in *Injector) ApplyCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		return network.SetCookies(params).Do(cctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	in.logger.Debug("Applied cookies to browser context", zap.Int("count", len(cookies)))
	return nil
}

// SeedCurrentPage writes an origin's persisted storage entries into the page
// the context is attached to. The page must already be on the owning origin;
// a mismatch is an error rather than a silent write to the wrong site.
// Entries are written in their persisted order.
func (in *Injector) SeedCurrentPage(ctx context.Context, state *OriginState) error {
	if state == nil || (len(state.LocalStorage) == 0 && len(state.SessionStorage) == 0) {
		return nil
	}

	var pageOrigin string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`location.origin`, &pageOrigin)); err != nil {
		return fmt.Errorf("failed to read page origin: %w", err)
	}
	if pageOrigin != state.Origin {
		return fmt.Errorf("page origin %s does not match state origin %s", pageOrigin, state.Origin)
	}

	// Nil slices marshal to JSON null, which the iteration below chokes on.
	localEntries := state.LocalStorage
	if localEntries == nil {
		localEntries = []Entry{}
	}
	sessionEntries := state.SessionStorage
	if sessionEntries == nil {
		sessionEntries = []Entry{}
	}
	localJSON, err := json.Marshal(localEntries)
	if err != nil {
		return fmt.Errorf("failed to encode localStorage entries: %w", err)
	}
	sessionJSON, err := json.Marshal(sessionEntries)
	if err != nil {
		return fmt.Errorf("failed to encode sessionStorage entries: %w", err)
	}

	script := fmt.Sprintf(`(function(local, session) {
		for (const e of local) { localStorage.setItem(e.name, e.value); }
		for (const e of session) { sessionStorage.setItem(e.name, e.value); }
		return local.length + session.length;
	})(%s, %s)`, localJSON, sessionJSON)

	var written int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &written)); err != nil {
		return fmt.Errorf("failed to seed storage for origin %s: %w", state.Origin, err)
	}
	in.logger.Debug("Seeded origin storage",
		zap.String("origin", state.Origin),
		zap.Int("entries", written))
	return nil
}

// PageOpener opens a fresh page context in the same browser context and
// returns it along with its cancel func.
type PageOpener func(parent context.Context) (context.Context, context.CancelFunc)

// Restore replays a full session document into a browser context: cookies
// first, then the storage of every persisted origin. Origins are seeded
// concurrently, each in its own page, while entries within one origin keep
// their persisted order. requiredOrigins, when non-empty, is validated
// against the document before any browser work starts.
func (in *Injector) Restore(ctx context.Context, session *Session, requiredOrigins []string, open PageOpener) error {
	if missing := session.MissingOrigins(requiredOrigins); len(missing) > 0 {
		return fmt.Errorf("session state covers no storage for origins %v", missing)
	}
	if err := in.ApplyCookies(ctx, session.Cookies); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range session.Origins {
		state := &session.Origins[i]
		if len(state.LocalStorage) == 0 && len(state.SessionStorage) == 0 {
			continue
		}
		g.Go(func() error {
			pageCtx, cancel := open(gctx)
			defer cancel()
			if err := chromedp.Run(pageCtx, chromedp.Navigate(state.Origin)); err != nil {
				return fmt.Errorf("failed to open %s for storage seeding: %w", state.Origin, err)
			}
			return in.SeedCurrentPage(pageCtx, state)
		})
	}
	return g.Wait()
}
