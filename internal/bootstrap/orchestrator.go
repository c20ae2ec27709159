// Package bootstrap decides what the user sees first when the application
// starts.
//
// The decision runs once:
//
//  1. fetch the provider list and seed the account registry;
//  2. fetch the accounts the core holds a session for; if there are any,
//     promote them and show the main panel on the most recent one;
//  3. otherwise probe every provider for VPN readiness and show the main
//     panel on the first ready provider, or the login greeter when none is.
//
// Failing to fetch either list is fatal and shown as an error. A failing
// VPN probe only makes that provider count as not ready.
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/internal/probe"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"go.uber.org/zap"
)

// Config holds bootstrap configuration.
type Config struct {
	FetchTimeout time.Duration
}

// Directory lists the known provider domains.
type Directory interface {
	ListProviders(ctx context.Context, refresh bool) ([]string, error)
}

// SessionLister lists the accounts the core holds a session for.
type SessionLister interface {
	ListUsers(ctx context.Context) ([]bitmask.User, error)
}

// VPNProber probes providers for VPN readiness. Results come back in the
// order of domains.
type VPNProber interface {
	CheckAll(ctx context.Context, domains []string) []probe.Result
}

// OutcomeRecordFunc is an optional callback invoked with the terminal state.
type OutcomeRecordFunc func(state State)

// Orchestrator runs the startup decision.
type Orchestrator struct {
	registry  *account.Registry
	directory Directory
	sessions  SessionLister
	prober    VPNProber
	presenter Presenter
	cfg       Config
	onOutcome OutcomeRecordFunc
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	ran     bool
	emitted bool
}

// New creates a new Orchestrator.
func New(
	registry *account.Registry,
	directory Directory,
	sessions SessionLister,
	prober VPNProber,
	presenter Presenter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:  registry,
		directory: directory,
		sessions:  sessions,
		prober:    prober,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetOutcomeRecord configures the outcome recording callback.
func (o *Orchestrator) SetOutcomeRecord(fn OutcomeRecordFunc) {
	o.onOutcome = fn
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes the startup decision and emits exactly one Show or one
// ShowError to the presenter. The error shown, if any, is also returned.
// Run never panics; a second call returns ErrAlreadyRun.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.mu.Lock()
	if o.ran {
		o.mu.Unlock()
		return ErrAlreadyRun
	}
	o.ran = true
	o.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			perr := &PanicError{Value: rec}
			if o.markEmitted() {
				o.logger.Error("bootstrap: presenter panicked", zap.Error(perr))
				err = perr
				return
			}
			err = o.fail(perr)
		}
	}()

	// ── Providers ───────────────────────────────────────────────────────────
	o.transition(StateFetchingProviders)
	domains, err := o.seedProviders(ctx)
	if err != nil {
		return o.fail(err)
	}

	// ── Sessions ────────────────────────────────────────────────────────────
	o.transition(StateFetchingAuthStatus)
	promoted, err := o.restoreSessions(ctx)
	if err != nil {
		return o.fail(err)
	}
	if promoted > 0 {
		o.finish(StateMainPanel, PanelMain, Properties{InitialAccount: o.registry.Current()})
		return nil
	}

	// ── VPN readiness ───────────────────────────────────────────────────────
	o.transition(StateProbingVPN)
	ready := o.readyAccounts(ctx, domains)
	if len(ready) == 0 {
		o.finish(StateGreeterPanel, PanelGreeter, Properties{ShowLogin: true})
		return nil
	}
	o.finish(StateMainPanel, PanelMain, Properties{InitialAccount: ready[0]})
	return nil
}

func (o *Orchestrator) seedProviders(ctx context.Context) ([]string, error) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	return SeedProviders(fctx, o.registry, o.directory)
}

func (o *Orchestrator) restoreSessions(ctx context.Context) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	return RestoreSessions(fctx, o.registry, o.sessions, o.logger)
}

// readyAccounts probes every domain and maps the ready ones back to their
// registry accounts, keeping the order of domains.
func (o *Orchestrator) readyAccounts(ctx context.Context, domains []string) []*account.Account {
	results := o.prober.CheckAll(ctx, domains)

	var ready []*account.Account
	for _, r := range results {
		if r.Err != nil {
			o.logger.Warn("bootstrap: provider treated as not ready",
				zap.Error(&VPNProbeError{Domain: r.Domain, Err: r.Err}),
			)
			continue
		}
		if !r.Ready() {
			continue
		}
		if a := o.registry.FindByAddress(r.Domain); a != nil {
			ready = append(ready, a)
		}
	}

	o.logger.Info("bootstrap: vpn readiness probed",
		zap.Int("providers", len(domains)),
		zap.Int("ready", len(ready)),
	)
	return ready
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	if !canTransition(from, to) {
		o.logger.Error("bootstrap: unexpected transition",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		return
	}
	o.logger.Debug("bootstrap: transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

func (o *Orchestrator) finish(state State, panel Panel, props Properties) {
	o.transition(state)
	fields := []zap.Field{zap.String("panel", string(panel))}
	if props.InitialAccount != nil {
		fields = append(fields, zap.String("account", props.InitialAccount.Address()))
	}
	o.logger.Info("bootstrap: done", fields...)

	if o.onOutcome != nil {
		o.onOutcome(state)
	}
	o.markEmitted()
	o.presenter.Show(panel, props)
}

func (o *Orchestrator) fail(err error) error {
	o.transition(StateErrorPanel)
	o.logger.Error("bootstrap failed", zap.Error(err))

	if o.onOutcome != nil {
		o.onOutcome(StateErrorPanel)
	}
	o.markEmitted()
	o.presenter.ShowError(err)
	return err
}

// markEmitted records that the presenter was called and reports whether it
// had been called before.
func (o *Orchestrator) markEmitted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.emitted
	o.emitted = true
	return prev
}
