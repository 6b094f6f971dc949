// File: internal/browser/manager.go

// Package browser owns the Chrome process lifecycle and hands out page
// sessions bound to it. The browser always runs headful: the portals this
// tool targets fingerprint headless Chrome aggressively, and interactive
// logins need a window the operator can see.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/browser/stealth"
	"github.com/billfetch/billfetch-cli/internal/config"
	"github.com/billfetch/billfetch-cli/internal/observability"
)

// Manager launches one Chrome instance and creates page sessions inside it.
// All sessions share the allocator, so cookies set in one are visible to the
// others.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	started     bool
	closed      bool
}

func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: observability.GetLogger().Named("browser"),
	}
}

// execOptions builds the allocator options from configuration. Defined
// explicitly rather than relying solely on chromedp.DefaultExecAllocatorOptions,
// which bakes in headless.
func (m *Manager) execOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
	}
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	if m.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.cfg.UserDataDir))
	}
	for _, arg := range m.cfg.ExtraArgs {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// Start creates the allocator context. The Chrome process itself launches
// lazily with the first session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("browser manager is closed")
	}
	if m.started {
		return nil
	}
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, m.execOptions()...)
	m.started = true
	m.logger.Info("Browser allocator initialized.",
		zap.String("exec_path", m.cfg.ExecPath),
		zap.Int("window_width", m.cfg.WindowWidth),
		zap.Int("window_height", m.cfg.WindowHeight))
	return nil
}

// NewSession opens a fresh page in the shared browser and installs the
// fingerprint evasions before any navigation runs.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if !m.started || m.closed {
		m.mu.Unlock()
		return nil, errors.New("browser manager not started")
	}
	allocCtx := m.allocCtx
	m.mu.Unlock()

	pageCtx, pageCancel := chromedp.NewContext(allocCtx)
	session := &Session{
		ID:     uuid.NewString(),
		ctx:    pageCtx,
		cancel: pageCancel,
		logger: m.logger.Named("session"),
	}

	if err := stealth.Apply(pageCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to apply fingerprint evasions: %w", err)
	}
	combined, combinedCancel := CombineContext(pageCtx, ctx)
	session.ctx = combined
	session.extraCancel = combinedCancel

	m.logger.Debug("Opened browser session.", zap.String("session_id", session.ID))
	return session, nil
}

// Shutdown tears the browser down gracefully, giving Chrome a chance to flush
// its profile before the allocator context is cancelled.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.closed {
		m.closed = true
		return
	}
	m.closed = true
	if err := chromedp.Cancel(m.allocCtx); err != nil {
		m.logger.Warn("Graceful browser shutdown failed, forcing cancel.", zap.Error(err))
	}
	m.allocCancel()
	m.logger.Info("Browser shut down.")
}
