// Package probe checks VPN readiness for a set of providers concurrently.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds prober configuration.
type Config struct {
	ProbeTimeout time.Duration
	Concurrency  int
}

// Checker asks the core whether the VPN can be used with a provider.
type Checker interface {
	CheckVPN(ctx context.Context, domain string) (*bitmask.VPNStatus, error)
}

// Result is the outcome of probing one domain. Err is set when the probe
// itself failed; Status is nil in that case.
type Result struct {
	Domain string
	Status *bitmask.VPNStatus
	Err    error
}

// Ready reports whether the probe succeeded and the VPN is usable.
func (r Result) Ready() bool {
	return r.Err == nil && r.Status != nil && r.Status.Ready()
}

// MetricsRecordFunc is an optional callback for recording probe outcomes.
type MetricsRecordFunc func(ready bool, err error)

// Prober fans VPN checks out over a bounded set of goroutines.
type Prober struct {
	checker   Checker
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a new Prober.
func New(checker Checker, cfg Config, logger *zap.Logger) *Prober {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{checker: checker, cfg: cfg, logger: logger}
}

// SetMetricsRecord configures the metrics recording callback.
func (p *Prober) SetMetricsRecord(fn MetricsRecordFunc) {
	p.onMetrics = fn
}

// CheckAll probes every domain and returns one Result per domain, in the
// order of domains. A failing probe never fails the batch.
func (p *Prober) CheckAll(ctx context.Context, domains []string) []Result {
	results := make([]Result, len(domains))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for i, d := range domains {
		i, d := i, d
		g.Go(func() error {
			results[i] = p.probe(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// probe runs a single check under the probe timeout. A panic in the
// checker is reported as a failed probe.
func (p *Prober) probe(ctx context.Context, domain string) (res Result) {
	res.Domain = domain

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = nil
			res.Err = fmt.Errorf("vpn check panicked: %v", rec)
		}
		if p.onMetrics != nil {
			p.onMetrics(res.Ready(), res.Err)
		}
		if res.Err != nil {
			p.logger.Warn("probe: vpn check failed",
				zap.String("domain", domain),
				zap.Error(res.Err),
			)
		} else {
			p.logger.Debug("probe: vpn checked",
				zap.String("domain", domain),
				zap.Bool("ready", res.Ready()),
			)
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	status, err := p.checker.CheckVPN(pctx, domain)
	if err != nil {
		res.Err = err
		return res
	}
	if status == nil {
		res.Err = fmt.Errorf("vpn check returned no status")
		return res
	}
	res.Status = status
	return res
}
