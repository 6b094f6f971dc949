// File: internal/platform/arnona.go

package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/authwait"
	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/download"
	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Municipal property-tax portal (city4u). The portal is an ASP.NET app: the
// login form posts back, the invoices screen renders a paginated table, and
// clicking a period opens a viewer popup that may or may not start a native
// download.
const (
	arnonaName     = "arnona"
	arnonaEntryURL = "https://www.city4u.co.il/PortalServicesSite/cityPay/264/mislaka"

	arnonaUsernameSecret = "ARNONA_USERNAME"
	arnonaPasswordSecret = "ARNONA_PASSWORD"

	arnonaUsernameSelector = "#UserName"
	arnonaPasswordSelector = "#Password"
	arnonaLoginSelector    = "#btnLogin"

	// Present only inside the authenticated area.
	arnonaAuthenticatedJS = `!!document.querySelector('div#breadcrumbs')`
	arnonaLoginMarker     = "#UserName"

	// Period links live in the invoices table and are labeled
	// "ארנונה תקופתי N" where N is the period number.
	arnonaPeriodLabelFormat = "ארנונה תקופתי %d"
)

func init() {
	Register(arnonaName, func(deps Deps) Flow {
		return &arnonaFlow{
			deps:   deps,
			logger: observability.GetLogger().Named("arnona"),
		}
	})
}

type arnonaFlow struct {
	deps   Deps
	logger *zap.Logger
}

func (f *arnonaFlow) Name() string     { return arnonaName }
func (f *arnonaFlow) EntryURL() string { return arnonaEntryURL }

func (f *arnonaFlow) RequiredOrigins() []string {
	return []string{"https://www.city4u.co.il"}
}

func (f *arnonaFlow) AuthProbe() authwait.Probe {
	return authwait.SelectorProbe("div#breadcrumbs", arnonaLoginMarker)
}

func (f *arnonaFlow) Login(ctx context.Context, session *browser.Session) error {
	username, err := f.deps.Secrets.GetSecret(ctx, arnonaUsernameSecret)
	if err != nil {
		return fmt.Errorf("failed to read arnona username: %w", err)
	}
	password, err := f.deps.Secrets.GetSecret(ctx, arnonaPasswordSecret)
	if err != nil {
		return fmt.Errorf("failed to read arnona password: %w", err)
	}

	timeout := f.deps.Config.Network.NavigationTimeout
	if err := session.Fill(ctx, arnonaUsernameSelector, username, timeout); err != nil {
		return err
	}
	if err := session.Fill(ctx, arnonaPasswordSelector, password, timeout); err != nil {
		return err
	}
	if err := session.Click(ctx, arnonaLoginSelector, timeout); err != nil {
		return err
	}

	status, err := authwait.Wait(session.Context(), f.AuthProbe(),
		f.deps.Config.Network.AuthWaitTimeout, f.deps.Config.Network.AuthPollInterval)
	if err != nil {
		return err
	}
	if status != authwait.StatusAuthenticated {
		return fmt.Errorf("arnona login did not reach the authenticated area (status %s)", status)
	}
	f.logger.Info("Logged in to municipal portal.")
	return nil
}

func (f *arnonaFlow) FetchPeriod(ctx context.Context, session *browser.Session, period Period) (string, error) {
	dest := documentPath(f.deps.Config.Download.Dir, arnonaName, period)
	if _, err := os.Stat(dest); err == nil {
		f.logger.Debug("Period document already on disk, skipping.", zap.String("path", dest))
		return dest, nil
	}

	label := fmt.Sprintf(arnonaPeriodLabelFormat, period.Index)
	timeout := f.deps.Config.Network.NavigationTimeout

	// The invoices table must be rendered before the link lookup.
	if err := session.RunActions(ctx, timeout, waitVisibleAction("table#datatable")); err != nil {
		return "", fmt.Errorf("invoices table did not render: %w", err)
	}

	attach := popupAttach(session)
	trigger := func(tctx context.Context) error {
		var clicked bool
		err := session.Evaluate(tctx, clickLinkByTextJS("table#datatable a", label), &clicked, timeout)
		if err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("no invoice link labeled %q in the table", label)
		}
		return nil
	}

	outcome, err := f.deps.Resolver.Acquire(ctx, f.deps.Config.Network.DownloadTimeout, trigger,
		download.NewEventStrategy(session.Context(), stagingDir(f.deps.Config.Download.Dir), dest),
		download.NewBlobStrategy(attach, dest, f.deps.Config.Network.AuthPollInterval),
	)
	if err != nil {
		return "", fmt.Errorf("failed to fetch arnona period %d/%d: %w", period.Year, period.Index, err)
	}
	f.logger.Info("Fetched period document.",
		zap.Int("year", period.Year),
		zap.Int("period", period.Index),
		zap.String("strategy", outcome.Strategy),
		zap.String("path", outcome.Path))
	return outcome.Path, nil
}

// stagingDir holds in-flight native downloads before they are renamed into
// their year/platform location.
func stagingDir(downloadDir string) string {
	return filepath.Join(downloadDir, ".staging")
}
