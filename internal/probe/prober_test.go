package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubChecker struct {
	statuses map[string]*bitmask.VPNStatus
	errs     map[string]error
	delay    map[string]time.Duration
	panics   map[string]bool

	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *stubChecker) CheckVPN(ctx context.Context, domain string) (*bitmask.VPNStatus, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.panics[domain] {
		panic("checker exploded")
	}
	if d := s.delay[domain]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[domain]; err != nil {
		return nil, err
	}
	return s.statuses[domain], nil
}

var ready = &bitmask.VPNStatus{VPN: "enabled", Installed: true, VPNReady: true}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheckAll_preservesOrder(t *testing.T) {
	checker := &stubChecker{
		statuses: map[string]*bitmask.VPNStatus{
			"a.org": ready,
			"b.org": ready,
			"c.org": {VPN: "disabled", Installed: true, VPNReady: true},
		},
		// a.org finishes last.
		delay: map[string]time.Duration{"a.org": 30 * time.Millisecond},
	}
	p := New(checker, Config{ProbeTimeout: time.Second}, zap.NewNop())

	results := p.CheckAll(context.Background(), []string{"a.org", "b.org", "c.org"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"a.org", "b.org", "c.org"} {
		if results[i].Domain != want {
			t.Errorf("results[%d].Domain: got %q, want %q", i, results[i].Domain, want)
		}
	}
	if !results[0].Ready() || !results[1].Ready() || results[2].Ready() {
		t.Errorf("unexpected readiness: %v %v %v", results[0].Ready(), results[1].Ready(), results[2].Ready())
	}
}

func TestCheckAll_failureIsolated(t *testing.T) {
	checker := &stubChecker{
		statuses: map[string]*bitmask.VPNStatus{"a.org": ready},
		errs:     map[string]error{"b.org": errors.New("connection refused")},
		panics:   map[string]bool{"c.org": true},
	}
	p := New(checker, Config{}, zap.NewNop())

	var mu sync.Mutex
	var failures int
	p.SetMetricsRecord(func(_ bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failures++
		}
	})

	results := p.CheckAll(context.Background(), []string{"a.org", "b.org", "c.org", "d.org"})

	if !results[0].Ready() {
		t.Error("a.org should be ready")
	}
	if results[1].Err == nil || results[1].Ready() {
		t.Error("b.org should carry its error and not be ready")
	}
	if results[2].Err == nil || results[2].Ready() {
		t.Error("c.org panic should be reported as an error")
	}
	if results[3].Err == nil {
		t.Error("d.org nil status should be reported as an error")
	}
	if failures != 3 {
		t.Errorf("metrics failures: got %d, want 3", failures)
	}
}

func TestCheckAll_timeout(t *testing.T) {
	checker := &stubChecker{
		statuses: map[string]*bitmask.VPNStatus{"slow.org": ready},
		delay:    map[string]time.Duration{"slow.org": 5 * time.Second},
	}
	p := New(checker, Config{ProbeTimeout: 20 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	results := p.CheckAll(context.Background(), []string{"slow.org"})
	if time.Since(start) > 2*time.Second {
		t.Fatal("probe did not honour its timeout")
	}
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Err)
	}
}

func TestCheckAll_boundedConcurrency(t *testing.T) {
	domains := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	checker := &stubChecker{
		statuses: map[string]*bitmask.VPNStatus{},
		delay:    map[string]time.Duration{},
	}
	for _, d := range domains {
		checker.statuses[d] = ready
		checker.delay[d] = 10 * time.Millisecond
	}
	p := New(checker, Config{Concurrency: 2}, zap.NewNop())

	p.CheckAll(context.Background(), domains)
	if peak := checker.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestCheckAll_empty(t *testing.T) {
	p := New(&stubChecker{}, Config{}, zap.NewNop())
	if got := p.CheckAll(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}
