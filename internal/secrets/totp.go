// File: internal/secrets/totp.go
package secrets

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// TimeBasedCode derives the current TOTP code from a shared secret. The code
// is a pure function of the secret and the wall clock.
func TimeBasedCode(secret string) (string, error) {
	return TimeBasedCodeAt(secret, time.Now())
}

// TimeBasedCodeAt derives the TOTP code for an explicit instant. Split out so
// tests can pin the clock.
func TimeBasedCodeAt(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}
