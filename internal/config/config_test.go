// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "billfetch", cfg.Logger.ServiceName)
	assert.Equal(t, 60*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network.AuthWaitTimeout)
	assert.Equal(t, "env", cfg.Secrets.Provider)
	assert.Equal(t, 2*time.Second, cfg.Download.PaceInterval)

	require.Contains(t, cfg.Billing.Windows, "arnona")
	assert.Equal(t, PeriodWindow{Start: 4, End: 6}, cfg.Billing.Windows["arnona"])
	require.Contains(t, cfg.Billing.Windows, "partner")
	assert.Equal(t, PeriodWindow{Start: 4, End: 11}, cfg.Billing.Windows["partner"])
}

func TestHomeDirExpansion(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NotContains(t, cfg.Auth.StateDir, "~", "state dir must be expanded to an absolute path")
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidDefaults", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("InvalidLoggerFormat", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Logger.Format = "xml"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger.format")
	})

	t.Run("GoogleProviderRequiresProject", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Secrets.Provider = "google"
		cfg.Secrets.GoogleProject = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secrets.google_project")

		cfg.Secrets.GoogleProject = "my-project"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("UnknownSecretsProvider", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Secrets.Provider = "vault"
		assert.Error(t, cfg.Validate())
	})

	t.Run("InvalidPeriodWindow", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Billing.Windows["broken"] = PeriodWindow{Start: 5, End: 2}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "billing.windows.broken")
	})

	t.Run("NonPositiveTimeouts", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Network.DownloadTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestConfigFromYAML(t *testing.T) {
	yaml := []byte(`
logger:
  level: debug
  format: json
network:
  download_timeout: 45s
billing:
  year: 2026
  windows:
    meitav:
      start: 1
      end: 3
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 45*time.Second, cfg.Network.DownloadTimeout)
	assert.Equal(t, 2026, cfg.Billing.Year)
	assert.Equal(t, PeriodWindow{Start: 1, End: 3}, cfg.Billing.Windows["meitav"])
	// Defaults for untouched platforms survive the merge.
	assert.Equal(t, PeriodWindow{Start: 4, End: 6}, cfg.Billing.Windows["arnona"])
}
