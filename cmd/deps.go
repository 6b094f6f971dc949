// File: cmd/deps.go

package cmd

import (
	"context"
	"fmt"

	"github.com/billfetch/billfetch-cli/internal/authstate"
	"github.com/billfetch/billfetch-cli/internal/browser"
	"github.com/billfetch/billfetch-cli/internal/download"
	"github.com/billfetch/billfetch-cli/internal/platform"
	"github.com/billfetch/billfetch-cli/internal/secrets"
)

// buildRunner assembles the shared infrastructure behind a command: secret
// provider, state store, browser, and the platform runner. The returned
// cleanup func shuts everything down and must run even on error paths.
func buildRunner(ctx context.Context) (*platform.Runner, func(), error) {
	provider, closeProvider, err := buildSecretsProvider(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := authstate.NewStore(cfg.Auth.StateDir)
	if err != nil {
		closeProvider()
		return nil, nil, err
	}

	manager := browser.NewManager(cfg.Browser)
	if err := manager.Start(ctx); err != nil {
		closeProvider()
		return nil, nil, err
	}

	deps := platform.Deps{
		Browser:  manager,
		Secrets:  provider,
		Resolver: download.NewResolver(),
		Config:   cfg,
	}
	cleanup := func() {
		manager.Shutdown()
		closeProvider()
	}
	return platform.NewRunner(deps, store), cleanup, nil
}

func buildSecretsProvider(ctx context.Context) (secrets.Provider, func(), error) {
	switch cfg.Secrets.Provider {
	case "env":
		return secrets.NewEnvProvider(), func() {}, nil
	case "google":
		gp, err := secrets.NewGoogleProvider(ctx, cfg.Secrets.GoogleProject, cfg.Secrets.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create secret manager client: %w", err)
		}
		return gp, func() { _ = gp.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
	}
}
