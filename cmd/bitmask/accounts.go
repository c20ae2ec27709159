package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/internal/bootstrap"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loadRegistry seeds a registry from the provider list and promotes every
// account the core holds a session for, as start does.
func loadRegistry(ctx context.Context, c *bitmask.Client) (*account.Registry, error) {
	registry := account.NewRegistry(logger.Named("registry"))
	if _, err := bootstrap.SeedProviders(ctx, registry, c); err != nil {
		return nil, err
	}
	if _, err := bootstrap.RestoreSessions(ctx, registry, c, logger.Named("bootstrap")); err != nil {
		return nil, err
	}
	return registry, nil
}

// readPassword reads a password from file, or prompts on the terminal with
// echo disabled when file is empty or "-".
func readPassword(file string) (string, error) {
	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal available for the password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// ── accounts ──────────────────────────────────────────────────────────────────

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List known accounts, current first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cmd.Context(), c)
		if err != nil {
			return explain(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tDOMAIN\tAUTHENTICATED")
		for _, a := range registry.List() {
			fmt.Fprintf(w, "%s\t%s\t%t\n", a.Address(), a.Domain(), a.Authenticated())
		}
		return w.Flush()
	},
}

// ── login / logout ────────────────────────────────────────────────────────────

var (
	loginPasswordFile string
	loginAutoSetup    bool
)

var loginCmd = &cobra.Command{
	Use:   "login <user@domain>",
	Short: "Log an account in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cmd.Context(), c)
		if err != nil {
			return explain(err)
		}
		password, err := readPassword(loginPasswordFile)
		if err != nil {
			return err
		}

		acct := registry.FindOrCreate(args[0])
		if err := registry.Login(cmd.Context(), c, acct, password, loginAutoSetup); err != nil {
			return explain(err)
		}
		if acct.Authenticated() {
			fmt.Printf("Logged in as %s\n", acct.Address())
		} else {
			fmt.Printf("Login of %s returned no session\n", acct.Address())
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout <user@domain>",
	Short: "Log an account out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cmd.Context(), c)
		if err != nil {
			return explain(err)
		}

		acct, match := registry.Lookup(args[0])
		if match != account.MatchExact {
			return fmt.Errorf("no session for %s", args[0])
		}
		if err := registry.Logout(cmd.Context(), c, acct); err != nil {
			return explain(err)
		}
		fmt.Printf("Logged out of %s\n", args[0])
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPasswordFile, "password-file", "", "Read the password from a file instead of prompting")
	loginCmd.Flags().BoolVar(&loginAutoSetup, "auto-setup", true, "Let the core set up an unknown provider")
}

// ── signup ────────────────────────────────────────────────────────────────────

var (
	signupInvite       string
	signupPasswordFile string
)

var signupCmd = &cobra.Command{
	Use:   "signup <user@domain>",
	Short: "Create a new account on a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		password, err := readPassword(signupPasswordFile)
		if err != nil {
			return err
		}

		acct, err := account.Create(cmd.Context(), c, args[0], password, signupInvite)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("Created %s\n", acct.Address())
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupInvite, "invite", "", "Invite code, if the provider requires one")
	signupCmd.Flags().StringVar(&signupPasswordFile, "password-file", "", "Read the password from a file instead of prompting")
}

// ── remove ────────────────────────────────────────────────────────────────────

var removeCmd = &cobra.Command{
	Use:   "remove <domain|user@domain>",
	Short: "Remove a provider and its account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(cmd.Context(), c)
		if err != nil {
			return explain(err)
		}

		acct := registry.FindByAddress(args[0])
		if acct == nil {
			return fmt.Errorf("unknown account %s", args[0])
		}
		removed := acct.Address()
		next, err := registry.Remove(cmd.Context(), c, acct)
		if err != nil {
			return explain(err)
		}

		fmt.Printf("Removed %s\n", removed)
		if next != nil {
			fmt.Printf("Selected %s\n", next.Address())
		}
		return nil
	},
}
