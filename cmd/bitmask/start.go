package main

import (
	"context"
	"fmt"
	"os"

	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/internal/bootstrap"
	"github.com/leap-se/bitmask-client/internal/metrics"
	"github.com/leap-se/bitmask-client/internal/panel"
	"github.com/leap-se/bitmask-client/internal/probe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	startListen string
	startServe  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Decide the first panel and optionally serve it to the user interface",
	Long: `Start fetches the provider list and the authenticated accounts from the
core, then picks the panel to show: the main panel on the most recent
authenticated account, else on the first provider with a ready VPN, else
the login greeter.

With --serve the decision is exposed on the panel API (GET /api/panel,
GET /api/accounts, /healthz, /metrics) until interrupted.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startServe, "serve", false, "Serve the panel API after the decision")
	startCmd.Flags().StringVar(&startListen, "listen", "", "Panel API listen address (default panel.listen)")
}

func runStart(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	registry := account.NewRegistry(logger.Named("registry"))
	switcher := panel.NewSwitcher(logger.Named("panel"))

	prober := probe.New(c, probe.Config{
		ProbeTimeout: cfg.Bootstrap.ProbeTimeout,
		Concurrency:  cfg.Bootstrap.ProbeConcurrency,
	}, logger.Named("probe"))
	prober.SetMetricsRecord(metrics.RecordProbe)

	orch := bootstrap.New(registry, c, c, prober, switcher, bootstrap.Config{
		FetchTimeout: cfg.Bootstrap.FetchTimeout,
	}, logger.Named("bootstrap"))
	orch.SetOutcomeRecord(func(s bootstrap.State) {
		metrics.RecordBootstrap(s.String())
		metrics.SetAccounts(registry.Len())
	})

	if !startServe {
		if err := orch.Run(ctx); err != nil {
			return explain(err)
		}
		printSnapshot(switcher.Snapshot())
		return nil
	}

	updates, cancel := switcher.Subscribe()
	defer cancel()
	go watchPanel(ctx, updates)

	// Run shows its own errors; Guard only catches what escapes it.
	go bootstrap.Guard(switcher, logger, func() error {
		_ = orch.Run(ctx)
		return nil
	})

	listen := startListen
	if listen == "" {
		listen = cfg.Panel.Listen
	}
	router := panel.NewRouter(switcher, registry, panel.RouterConfig{
		CORSOrigins: cfg.Panel.CORSOrigins,
	}, logger.Named("http"))
	return panel.Serve(ctx, listen, router, logger)
}

func watchPanel(ctx context.Context, updates <-chan panel.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			printSnapshot(snap)
		}
	}
}

func printSnapshot(snap panel.Snapshot) {
	if snap.Err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", snap.Err)
	}
	switch {
	case snap.Panel == "":
		return
	case snap.Props.InitialAccount != nil:
		fmt.Printf("panel: %s (account %s)\n", snap.Panel, snap.Props.InitialAccount.Address())
	case snap.Props.ShowLogin:
		fmt.Printf("panel: %s (login)\n", snap.Panel)
	default:
		fmt.Printf("panel: %s\n", snap.Panel)
	}
	logger.Debug("panel snapshot", zap.Time("updated_at", snap.UpdatedAt))
}
