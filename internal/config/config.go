// Package config loads runtime configuration from a YAML file, environment
// variables and defaults, in that order of increasing precedence for the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LOUVOR_API_KEY.
const EnvPrefix = "LOUVOR"

// Config is the full runtime configuration.
type Config struct {
	// Endpoint is the remote bin URL holding the shared document.
	Endpoint string `mapstructure:"endpoint"`
	// APIKey authenticates against the remote bin.
	APIKey string `mapstructure:"api_key"`
	// Actor is the user name recorded in audit entries.
	Actor string `mapstructure:"actor"`

	// MirrorPath is the SQLite file holding the offline mirror.
	MirrorPath string `mapstructure:"mirror_path"`

	PollInterval     time.Duration `mapstructure:"poll_interval"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MaxAttempts      int           `mapstructure:"max_attempts"`

	// DashboardPort serves the WebSocket dashboard. Zero disables it.
	DashboardPort int `mapstructure:"dashboard_port"`

	// DropDir is watched for schedule images. Empty disables the watcher.
	DropDir string `mapstructure:"drop_dir"`
	// MaxImageBytes caps ingested image size. Zero uses the built-in cap.
	MaxImageBytes int64 `mapstructure:"max_image_bytes"`

	// LogFile routes logs to a rotating file. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
}

// Load reads configuration from path. An empty path falls back to
// louvor.yaml in the working directory and then in ~/.config/louvor/; a
// missing file is fine, env and defaults still apply. A named path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Every key gets a default so AutomaticEnv can resolve it even when
	// the config file omits it.
	v.SetDefault("endpoint", "")
	v.SetDefault("api_key", "")
	v.SetDefault("actor", "anonymous")
	v.SetDefault("mirror_path", defaultMirrorPath())
	v.SetDefault("poll_interval", 10*time.Second)
	v.SetDefault("debounce_interval", 1500*time.Millisecond)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("dashboard_port", 0)
	v.SetDefault("drop_dir", "")
	v.SetDefault("max_image_bytes", 0)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("louvor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "louvor"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required (set endpoint in the config file or %s_ENDPOINT)", EnvPrefix)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set api_key in the config file or %s_API_KEY)", EnvPrefix)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.DebounceInterval <= 0 {
		return fmt.Errorf("debounce_interval must be positive, got %s", c.DebounceInterval)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

func defaultMirrorPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "louvor.db"
	}
	return filepath.Join(home, ".local", "share", "louvor", "louvor.db")
}
