package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leap-se/bitmask-client/internal/config"
	"github.com/leap-se/bitmask-client/internal/metrics"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile  string
	apiURL   string
	apiToken string

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bitmask",
	Short: "Bitmask account and provider client",
	Long: `bitmask talks to a running bitmask core over its local HTTP API.

It lists providers and accounts, logs accounts in and out, signs up new
accounts, removes providers and checks VPN readiness. The start command
decides what the application shows first and can serve that state to the
user interface:

  bitmask start --listen 127.0.0.1:7071`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.URL = apiURL
		}
		logger, err = newLogger(cfg.Log)
		if err != nil {
			return err
		}
		if cfg.File == "" {
			logger.Debug("no config file found, using defaults")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/bitmask/bitmask.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "bitmask core API URL (default http://localhost:7070)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token; read from api.token_file when empty")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(vpnCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds a production or development zap logger at the
// configured level.
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// newClient builds the core API client from configuration. API calls are
// recorded in the Prometheus collectors.
func newClient() (*bitmask.Client, error) {
	opts := []bitmask.Option{
		bitmask.WithTimeout(cfg.API.Timeout),
		bitmask.WithDirectoryCacheTTL(cfg.Directory.CacheTTL),
		bitmask.WithCallObserver(metrics.RecordAPICall),
	}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, bitmask.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	if apiToken != "" {
		opts = append(opts, bitmask.WithAPIToken(apiToken))
	} else {
		opts = append(opts, bitmask.WithTokenFile(cfg.API.TokenFile))
	}
	return bitmask.New(cfg.API.URL, opts...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	if errors.Is(err, bitmask.ErrUnauthorized) {
		return fmt.Errorf("%w (is the token in %s current?)", err, cfg.API.TokenFile)
	}
	return err
}

// ── version ───────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bitmask CLI version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bitmask %s\n", version)
	},
}
