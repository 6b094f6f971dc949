// File: internal/platform/meitav.go

package platform

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/authwait"
	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/download"
	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Water-corporation portal (meitav). Login is by passport number, the
// apartments screen is the authenticated landing page, and each period row
// carries a "חשבונית" (invoice) link. Periods are labeled "N-YEAR".
const (
	meitavName     = "meitav"
	meitavEntryURL = "https://my-meitav.co.il/appartments"

	meitavPassportSecret = "MEITAV_PASSPORT"
	meitavPasswordSecret = "MEITAV_PASSWORD"

	meitavPassportSelector = "#pasportNumber"
	meitavPasswordSelector = "#password"
	meitavSubmitSelector   = "button[type=submit]"

	// The apartments screen renders everything under #allInfo.
	meitavAuthenticatedSelector = "#allInfo"
	meitavLoginMarker           = meitavPassportSelector

	meitavInvoiceLinkLabel = "חשבונית"
)

func init() {
	Register(meitavName, func(deps Deps) Flow {
		return &meitavFlow{
			deps:   deps,
			logger: observability.GetLogger().Named("meitav"),
		}
	})
}

type meitavFlow struct {
	deps   Deps
	logger *zap.Logger
}

func (f *meitavFlow) Name() string     { return meitavName }
func (f *meitavFlow) EntryURL() string { return meitavEntryURL }

func (f *meitavFlow) RequiredOrigins() []string {
	return []string{"https://my-meitav.co.il"}
}

func (f *meitavFlow) AuthProbe() authwait.Probe {
	return authwait.SelectorProbe(meitavAuthenticatedSelector, meitavLoginMarker)
}

func (f *meitavFlow) Login(ctx context.Context, session *browser.Session) error {
	passport, err := f.deps.Secrets.GetSecret(ctx, meitavPassportSecret)
	if err != nil {
		return fmt.Errorf("failed to read meitav passport number: %w", err)
	}
	password, err := f.deps.Secrets.GetSecret(ctx, meitavPasswordSecret)
	if err != nil {
		return fmt.Errorf("failed to read meitav password: %w", err)
	}

	timeout := f.deps.Config.Network.NavigationTimeout
	if err := session.Fill(ctx, meitavPassportSelector, passport, timeout); err != nil {
		return err
	}
	if err := session.Fill(ctx, meitavPasswordSelector, password, timeout); err != nil {
		return err
	}
	if err := session.Click(ctx, meitavSubmitSelector, timeout); err != nil {
		return err
	}

	status, err := authwait.Wait(session.Context(), f.AuthProbe(),
		f.deps.Config.Network.AuthWaitTimeout, f.deps.Config.Network.AuthPollInterval)
	if err != nil {
		return err
	}
	if status != authwait.StatusAuthenticated {
		return fmt.Errorf("meitav login did not reach the apartments screen (status %s)", status)
	}
	f.logger.Info("Logged in to water portal.")
	return nil
}

// periodRowLabel is how the portal names a billing period row.
func meitavPeriodLabel(p Period) string {
	return fmt.Sprintf("%d-%d", p.Index, p.Year)
}

func (f *meitavFlow) FetchPeriod(ctx context.Context, session *browser.Session, period Period) (string, error) {
	dest := documentPath(f.deps.Config.Download.Dir, meitavName, period)
	if _, err := os.Stat(dest); err == nil {
		f.logger.Debug("Period document already on disk, skipping.", zap.String("path", dest))
		return dest, nil
	}

	timeout := f.deps.Config.Network.NavigationTimeout
	if err := session.RunActions(ctx, timeout, waitVisibleAction(meitavAuthenticatedSelector)); err != nil {
		return "", fmt.Errorf("apartments screen did not render: %w", err)
	}

	attach := popupAttach(session)
	trigger := func(tctx context.Context) error {
		var clicked bool
		err := session.Evaluate(tctx, clickInvoiceInPeriodRowJS(meitavPeriodLabel(period)), &clicked, timeout)
		if err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("no invoice link for period %s", meitavPeriodLabel(period))
		}
		return nil
	}

	outcome, err := f.deps.Resolver.Acquire(ctx, f.deps.Config.Network.DownloadTimeout, trigger,
		download.NewEventStrategy(session.Context(), stagingDir(f.deps.Config.Download.Dir), dest),
		download.NewBlobStrategy(attach, dest, f.deps.Config.Network.AuthPollInterval),
	)
	if err != nil {
		return "", fmt.Errorf("failed to fetch meitav period %s: %w", meitavPeriodLabel(period), err)
	}
	f.logger.Info("Fetched period document.",
		zap.Int("year", period.Year),
		zap.Int("period", period.Index),
		zap.String("strategy", outcome.Strategy),
		zap.String("path", outcome.Path))
	return outcome.Path, nil
}

// clickInvoiceInPeriodRowJS finds the row whose text carries the period label
// and clicks its invoice link.
func clickInvoiceInPeriodRowJS(periodLabel string) string {
	return fmt.Sprintf(`(function() {
		const rows = document.querySelectorAll('#allInfo tr, #allInfo li, #allInfo .row');
		for (const row of rows) {
			if (!row.textContent.includes(%q)) { continue; }
			const links = row.querySelectorAll('a, button');
			for (const link of links) {
				if (link.textContent.trim().includes(%q)) {
					link.click();
					return true;
				}
			}
		}
		return false;
	})()`, periodLabel, meitavInvoiceLinkLabel)
}
