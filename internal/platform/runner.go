// File: internal/platform/runner.go

package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/billfetch/billfetch-cli/internal/authstate"
	"github.com/billfetch/billfetch-cli/internal/authwait"
	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Runner drives one platform end to end: establish an authenticated page by
// replaying persisted state or logging in, then walk the billing window.
type Runner struct {
	deps     Deps
	store    *authstate.Store
	capturer *authstate.Capturer
	injector *authstate.Injector
	logger   *zap.Logger
}

func NewRunner(deps Deps, store *authstate.Store) *Runner {
	return &Runner{
		deps:     deps,
		store:    store,
		capturer: authstate.NewCapturer(),
		injector: authstate.NewInjector(),
		logger:   observability.GetLogger().Named("runner"),
	}
}

// Fetch downloads every period in the platform's billing window. Downloads
// are paced so the portal never sees back-to-back requests. Paths of the
// documents fetched so far come back even on error.
func (r *Runner) Fetch(ctx context.Context, platformName string) ([]string, error) {
	flow, err := New(platformName, r.deps)
	if err != nil {
		return nil, err
	}
	periods, err := PeriodsToDownload(r.deps.Config.Billing, platformName)
	if err != nil {
		return nil, err
	}

	session, err := r.deps.Browser.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := r.establishSession(ctx, flow, session); err != nil {
		return nil, err
	}

	pace := r.deps.Config.Download.PaceInterval
	if pace <= 0 {
		pace = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(pace), 1)

	var paths []string
	for _, period := range periods {
		if err := limiter.Wait(ctx); err != nil {
			return paths, fmt.Errorf("fetch cancelled: %w", err)
		}
		path, err := flow.FetchPeriod(ctx, session, period)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	r.logger.Info("Billing window complete.",
		zap.String("platform", platformName),
		zap.Int("documents", len(paths)))
	return paths, nil
}

// Login forces a fresh credentialed login and persists the resulting state,
// ignoring any session already on disk.
func (r *Runner) Login(ctx context.Context, platformName string) error {
	flow, err := New(platformName, r.deps)
	if err != nil {
		return err
	}
	session, err := r.deps.Browser.NewSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	return r.loginAndPersist(ctx, flow, session)
}

// InteractiveLogin opens the portal's login page and defers to the operator:
// wait blocks until they signal the login is complete in the headful window.
// The session is then verified and persisted like a credentialed login.
func (r *Runner) InteractiveLogin(ctx context.Context, platformName string, wait func() error) error {
	flow, err := New(platformName, r.deps)
	if err != nil {
		return err
	}
	session, err := r.deps.Browser.NewSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Navigate(ctx, flow.EntryURL(), r.deps.Config.Network.NavigationTimeout); err != nil {
		return err
	}
	if err := wait(); err != nil {
		return err
	}

	status, err := authwait.Wait(session.Context(), flow.AuthProbe(),
		r.deps.Config.Network.AuthWaitTimeout, r.deps.Config.Network.AuthPollInterval)
	if err != nil {
		return err
	}
	if status != authwait.StatusAuthenticated {
		return fmt.Errorf("page is not authenticated (status %s)", status)
	}

	snapshot, err := r.capturer.SnapshotOrigins(session.Context(), session.NewTab, flow.RequiredOrigins())
	if err != nil {
		return fmt.Errorf("failed to capture session state: %w", err)
	}
	return r.store.Save(platformName, snapshot)
}

// establishSession leaves the session on an authenticated page. Replay of
// persisted state is attempted first; any replay problem falls through to a
// fresh login rather than failing the run.
func (r *Runner) establishSession(ctx context.Context, flow Flow, session *browser.Session) error {
	state, err := r.store.Load(flow.Name())
	switch {
	case errors.Is(err, authstate.ErrStateNotFound):
		r.logger.Info("No persisted session, logging in.", zap.String("platform", flow.Name()))
		return r.loginAndPersist(ctx, flow, session)
	case err != nil:
		// Corrupt state is surfaced, not papered over: the operator decides
		// whether to delete the file or re-run login.
		return fmt.Errorf("cannot establish session: %w", err)
	}

	authstate.LogFreshness(flow.Name(), authstate.CheckFreshness(state, time.Now()))

	if missing := state.MissingOrigins(flow.RequiredOrigins()); len(missing) > 0 {
		r.logger.Warn("Persisted session lacks required origins, logging in fresh.",
			zap.String("platform", flow.Name()), zap.Strings("missing", missing))
		return r.loginAndPersist(ctx, flow, session)
	}

	if err := r.replay(ctx, flow, session, state); err != nil {
		r.logger.Warn("Session replay failed, logging in fresh.",
			zap.String("platform", flow.Name()), zap.Error(err))
		return r.loginAndPersist(ctx, flow, session)
	}

	status, err := authwait.Wait(session.Context(), flow.AuthProbe(),
		r.deps.Config.Network.AuthWaitTimeout, r.deps.Config.Network.AuthPollInterval)
	if err != nil {
		return err
	}
	if status == authwait.StatusAuthenticated {
		r.logger.Info("Replayed persisted session.", zap.String("platform", flow.Name()))
		return nil
	}
	r.logger.Info("Portal rejected the replayed session, logging in fresh.",
		zap.String("platform", flow.Name()), zap.String("status", status.String()))
	return r.loginAndPersist(ctx, flow, session)
}

// replay installs cookies and storage, then lands the session on the entry
// page. Cross-origin localStorage is seeded in throwaway tabs; session-scoped
// entries only exist per tab, so the entry origin is reseeded in the working
// tab and the page reloaded to let its scripts observe the restored state.
func (r *Runner) replay(ctx context.Context, flow Flow, session *browser.Session, state *authstate.Session) error {
	if err := r.injector.Restore(session.Context(), state, flow.RequiredOrigins(), session.NewTab); err != nil {
		return err
	}

	navTimeout := r.deps.Config.Network.NavigationTimeout
	if err := session.Navigate(ctx, flow.EntryURL(), navTimeout); err != nil {
		return err
	}

	entryOrigin, err := authstate.NormalizeOrigin(flow.EntryURL())
	if err != nil {
		return err
	}
	if originState := state.Origin(entryOrigin); originState != nil && len(originState.SessionStorage) > 0 {
		if err := r.injector.SeedCurrentPage(session.Context(), originState); err != nil {
			return err
		}
		if err := session.Navigate(ctx, flow.EntryURL(), navTimeout); err != nil {
			return err
		}
	}
	return nil
}

// loginAndPersist navigates to the login page, runs the credentialed login,
// and snapshots the fresh session over whatever was stored before.
func (r *Runner) loginAndPersist(ctx context.Context, flow Flow, session *browser.Session) error {
	if err := session.Navigate(ctx, flow.EntryURL(), r.deps.Config.Network.NavigationTimeout); err != nil {
		return err
	}
	if err := flow.Login(ctx, session); err != nil {
		return err
	}

	snapshot, err := r.capturer.SnapshotOrigins(session.Context(), session.NewTab, flow.RequiredOrigins())
	if err != nil {
		// The login itself succeeded; a failed snapshot only costs the next
		// run a fresh login.
		r.logger.Warn("Could not capture session state after login.",
			zap.String("platform", flow.Name()), zap.Error(err))
		return nil
	}
	if err := r.store.Save(flow.Name(), snapshot); err != nil {
		r.logger.Warn("Could not persist session state.",
			zap.String("platform", flow.Name()), zap.Error(err))
	}
	return nil
}
