// File: internal/secrets/secrets.go

// Package secrets resolves portal credentials from the environment or from
// Google Secret Manager, and derives time-based one-time codes for portals
// behind TOTP two-factor prompts.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound indicates a secret is not present in the backing provider.
// It is always wrapped with the secret name.
var ErrNotFound = errors.New("secret not found")

// Provider resolves named secrets.
type Provider interface {
	// GetSecret returns the secret's current value, or an error wrapping
	// ErrNotFound when the name is unknown to this provider.
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider resolves secrets from environment variables. The secret name is
// used as the variable name verbatim.
type EnvProvider struct{}

// NewEnvProvider returns a Provider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// GetSecret implements Provider. Empty values are treated as unset: a blank
// credential is never a usable one.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%w: env var %s is missing", ErrNotFound, name)
	}
	return value, nil
}

var _ Provider = (*EnvProvider)(nil)
