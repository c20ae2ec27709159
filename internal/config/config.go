// Package config loads client configuration from file, environment and
// defaults.
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

// EnvPrefix prefixes every environment override, e.g. BITMASK_API_URL.
const EnvPrefix = "BITMASK"

// Config is the resolved client configuration.
type Config struct {
	API       APIConfig
	Bootstrap BootstrapConfig
	Directory DirectoryConfig
	Panel     PanelConfig
	Log       LogConfig

	// File is the config file that was read, or "" when none was found.
	File string
}

// APIConfig configures the connection to the bitmask core.
type APIConfig struct {
	URL       string
	TokenFile string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// BootstrapConfig configures the startup decision.
type BootstrapConfig struct {
	FetchTimeout     time.Duration
	ProbeTimeout     time.Duration
	ProbeConcurrency int
}

// DirectoryConfig configures the provider list cache.
type DirectoryConfig struct {
	CacheTTL time.Duration
}

// PanelConfig configures the local panel API server.
type PanelConfig struct {
	Listen      string
	CORSOrigins []string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("api.url", "http://localhost:7070")
	v.SetDefault("api.token_file", filepath.Join(home, ".config", "leap", "authtoken"))
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit_rps", 0)
	v.SetDefault("api.rate_limit_burst", 1)
	v.SetDefault("bootstrap.fetch_timeout", "15s")
	v.SetDefault("bootstrap.probe_timeout", "10s")
	v.SetDefault("bootstrap.probe_concurrency", 8)
	v.SetDefault("directory.cache_ttl", "5m")
	v.SetDefault("panel.listen", "127.0.0.1:7071")
	v.SetDefault("panel.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration. An explicit cfgFile must exist; otherwise
// bitmask.yaml is looked up in ~/.config/bitmask and the working directory,
// and a missing file leaves the defaults in place.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("bitmask")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bitmask"))
		}
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			URL:       v.GetString("api.url"),
			TokenFile: expandHome(v.GetString("api.token_file")),
			Timeout:   v.GetDuration("api.timeout"),
			RateLimit: v.GetFloat64("api.rate_limit_rps"),
			RateBurst: v.GetInt("api.rate_limit_burst"),
		},
		Bootstrap: BootstrapConfig{
			FetchTimeout:     v.GetDuration("bootstrap.fetch_timeout"),
			ProbeTimeout:     v.GetDuration("bootstrap.probe_timeout"),
			ProbeConcurrency: v.GetInt("bootstrap.probe_concurrency"),
		},
		Directory: DirectoryConfig{
			CacheTTL: v.GetDuration("directory.cache_ttl"),
		},
		Panel: PanelConfig{
			Listen:      v.GetString("panel.listen"),
			CORSOrigins: v.GetStringSlice("panel.cors_origins"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		File: v.ConfigFileUsed(),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.URL == "" {
		return errors.New("config: api.url is required")
	}
	if c.Bootstrap.ProbeConcurrency < 1 {
		return fmt.Errorf("config: bootstrap.probe_concurrency must be positive, got %d", c.Bootstrap.ProbeConcurrency)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("config: api.rate_limit_rps must not be negative, got %v", c.API.RateLimit)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
