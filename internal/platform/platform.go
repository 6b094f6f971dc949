// File: internal/platform/platform.go

// Package platform implements the per-portal billing flows and the runner
// that drives them end to end: session replay, login fallback, and period
// downloads.
package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/billfetch/billfetch-cli/internal/authwait"
	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/config"
	"github.com/billfetch/billfetch-cli/internal/download"
	"github.com/billfetch/billfetch-cli/internal/secrets"
)

// Period identifies one billing period on a platform. Index is the portal's
// own period number, not a month.
type Period struct {
	Year  int
	Index int
}

// FileName is the on-disk name for the period's document.
func (p Period) FileName() string {
	return fmt.Sprintf("%02d.pdf", p.Index)
}

// Deps carries the shared infrastructure a flow needs.
type Deps struct {
	Browser  *browser.Manager
	Secrets  secrets.Provider
	Resolver *download.Resolver
	Config   *config.Config
}

// Flow is one portal's billing automation.
type Flow interface {
	Name() string

	// EntryURL is where a session starts, whether replayed or fresh.
	EntryURL() string

	// RequiredOrigins lists the origins whose storage a persisted session
	// must cover for replay to be worth attempting.
	RequiredOrigins() []string

	// AuthProbe reports whether the current page is authenticated.
	AuthProbe() authwait.Probe

	// Login performs a credentialed login from the portal's login page.
	Login(ctx context.Context, session *browser.Session) error

	// FetchPeriod downloads one period's document and returns its path.
	FetchPeriod(ctx context.Context, session *browser.Session, period Period) (string, error)
}

// UnknownPlatformError names a platform no flow is registered for, along
// with what is available.
type UnknownPlatformError struct {
	Platform string
	Known    []string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q (known: %v)", e.Platform, e.Known)
}

var registry = map[string]func(Deps) Flow{}

// Register installs a flow constructor under a platform name. Called from
// flow init funcs.
func Register(name string, build func(Deps) Flow) {
	registry[name] = build
}

// New builds the flow for a platform.
func New(name string, deps Deps) (Flow, error) {
	build, ok := registry[name]
	if !ok {
		return nil, &UnknownPlatformError{Platform: name, Known: Known()}
	}
	return build(deps), nil
}

// Known returns the registered platform names, sorted.
func Known() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// documentPath is where a period's PDF belongs: one directory per year, one
// subdirectory per platform.
func documentPath(downloadDir string, platformName string, p Period) string {
	return filepath.Join(downloadDir, fmt.Sprintf("%d", p.Year), platformName, p.FileName())
}
