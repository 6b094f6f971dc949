// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Secrets  SecretsConfig  `mapstructure:"secrets" yaml:"secrets"`
	Billing  BillingConfig  `mapstructure:"billing" yaml:"billing"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome instance billfetch drives. The tool is
// deliberately headful: logins are human-supervised and some portals refuse
// headless sessions outright.
type BrowserConfig struct {
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir  string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	ExtraArgs    []string `mapstructure:"extra_args" yaml:"extra_args"`
}

// NetworkConfig holds timeouts for driver operations.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	AuthWaitTimeout   time.Duration `mapstructure:"auth_wait_timeout" yaml:"auth_wait_timeout"`
	AuthPollInterval  time.Duration `mapstructure:"auth_poll_interval" yaml:"auth_poll_interval"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
}

// AuthConfig locates the persisted session documents.
type AuthConfig struct {
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// DownloadConfig controls invoice placement and pacing.
type DownloadConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// PaceInterval is the minimum spacing between consecutive per-period
	// downloads against the same portal.
	PaceInterval time.Duration `mapstructure:"pace_interval" yaml:"pace_interval"`
}

// SecretsConfig selects the credential backend.
type SecretsConfig struct {
	Provider        string `mapstructure:"provider" yaml:"provider"` // "env" or "google"
	GoogleProject   string `mapstructure:"google_project" yaml:"google_project"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// PeriodWindow is an inclusive range of billing periods to download.
type PeriodWindow struct {
	Start int `mapstructure:"start" yaml:"start"`
	End   int `mapstructure:"end" yaml:"end"`
}

// BillingConfig holds the billing year and the per-platform period windows.
type BillingConfig struct {
	Year    int                     `mapstructure:"year" yaml:"year"`
	Windows map[string]PeriodWindow `mapstructure:"windows" yaml:"windows"`
}

// SetDefaults registers the default configuration values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "billfetch")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.window_width", 1440)
	v.SetDefault("browser.window_height", 900)

	v.SetDefault("network.navigation_timeout", 60*time.Second)
	v.SetDefault("network.auth_wait_timeout", 30*time.Second)
	v.SetDefault("network.auth_poll_interval", 250*time.Millisecond)
	v.SetDefault("network.download_timeout", 30*time.Second)

	v.SetDefault("auth.state_dir", "~/.billfetch/auth")
	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.pace_interval", 2*time.Second)

	v.SetDefault("secrets.provider", "env")

	v.SetDefault("billing.year", time.Now().Year())
	// Bi-monthly platforms carry six periods a year, monthly ones twelve.
	v.SetDefault("billing.windows", map[string]map[string]int{
		"arnona":    {"start": 4, "end": 6},
		"meitav":    {"start": 4, "end": 6},
		"partner":   {"start": 4, "end": 11},
		"workspace": {"start": 7, "end": 11},
	})
}

// NewConfigFromViper unmarshals and validates the configuration, expanding
// "~" in filesystem paths.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.Auth.StateDir, err = homedir.Expand(cfg.Auth.StateDir); err != nil {
		return nil, fmt.Errorf("failed to expand auth.state_dir: %w", err)
	}
	if cfg.Download.Dir, err = homedir.Expand(cfg.Download.Dir); err != nil {
		return nil, fmt.Errorf("failed to expand download.dir: %w", err)
	}
	if cfg.Browser.UserDataDir != "" {
		if cfg.Browser.UserDataDir, err = homedir.Expand(cfg.Browser.UserDataDir); err != nil {
			return nil, fmt.Errorf("failed to expand browser.user_data_dir: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefaultConfig builds a Config carrying only the defaults. Used by tests
// and as a fallback when no config file exists.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are under our control; failing to build them is a bug.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks invariants that viper cannot express.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}

	switch strings.ToLower(c.Secrets.Provider) {
	case "env":
	case "google":
		if c.Secrets.GoogleProject == "" {
			return fmt.Errorf("secrets.google_project is required when secrets.provider is \"google\"")
		}
	default:
		return fmt.Errorf("secrets.provider must be \"env\" or \"google\", got %q", c.Secrets.Provider)
	}

	if c.Billing.Year < 2000 || c.Billing.Year > 2200 {
		return fmt.Errorf("billing.year %d is out of range", c.Billing.Year)
	}
	for platform, w := range c.Billing.Windows {
		if w.Start < 1 || w.End < w.Start {
			return fmt.Errorf("billing.windows.%s: invalid period window [%d, %d]", platform, w.Start, w.End)
		}
	}

	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive")
	}
	if c.Network.AuthWaitTimeout <= 0 {
		return fmt.Errorf("network.auth_wait_timeout must be positive")
	}
	if c.Network.AuthPollInterval <= 0 {
		return fmt.Errorf("network.auth_poll_interval must be positive")
	}
	if c.Network.DownloadTimeout <= 0 {
		return fmt.Errorf("network.download_timeout must be positive")
	}
	return nil
}
