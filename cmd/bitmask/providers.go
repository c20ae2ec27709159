package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/internal/metrics"
	"github.com/leap-se/bitmask-client/internal/probe"
	"github.com/spf13/cobra"
)

// ── providers ─────────────────────────────────────────────────────────────────

var (
	providersRefresh bool
	providersFormat  string
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		domains, err := c.ListProviders(cmd.Context(), providersRefresh)
		if err != nil {
			return explain(err)
		}
		for _, d := range domains {
			fmt.Println(d)
		}
		return nil
	},
}

var providersShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show a provider definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := account.New(args[0]).Provider(cmd.Context(), c)
		if err != nil {
			return explain(err)
		}

		if providersFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		fmt.Printf("Domain:      %s\n", p.Domain)
		fmt.Printf("Name:        %s\n", p.Name)
		if p.Description != "" {
			fmt.Printf("Description: %s\n", p.Description)
		}
		if p.APIURI != "" {
			fmt.Printf("API:         %s\n", p.APIURI)
		}
		if len(p.Services) > 0 {
			fmt.Printf("Services:    %s\n", strings.Join(p.Services, ", "))
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersRefresh, "refresh", false, "Bypass the cached provider list")
	providersShowCmd.Flags().StringVar(&providersFormat, "format", "text", "Output format: text or json")
	providersCmd.AddCommand(providersShowCmd)
}

// ── vpn ───────────────────────────────────────────────────────────────────────

var vpnCmd = &cobra.Command{
	Use:   "vpn",
	Short: "VPN readiness commands",
}

var vpnCheckCmd = &cobra.Command{
	Use:   "check [domain...]",
	Short: "Check whether providers are ready to start the VPN",
	Long: `Check probes each provider concurrently and reports whether its VPN is
installed, enabled and ready. Without arguments every configured provider is
checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		domains := args
		if len(domains) == 0 {
			if domains, err = c.ListProviders(cmd.Context(), false); err != nil {
				return explain(err)
			}
		}

		prober := probe.New(c, probe.Config{
			ProbeTimeout: cfg.Bootstrap.ProbeTimeout,
			Concurrency:  cfg.Bootstrap.ProbeConcurrency,
		}, logger.Named("probe"))
		prober.SetMetricsRecord(metrics.RecordProbe)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tREADY\tVPN\tINSTALLED\tERROR")
		for _, r := range prober.CheckAll(cmd.Context(), domains) {
			if r.Err != nil {
				fmt.Fprintf(w, "%s\tfalse\t\t\t%s\n", r.Domain, r.Err)
				continue
			}
			fmt.Fprintf(w, "%s\t%t\t%s\t%t\t\n", r.Domain, r.Ready(), r.Status.VPN, r.Status.Installed)
		}
		return w.Flush()
	},
}

func init() {
	vpnCmd.AddCommand(vpnCheckCmd)
}
