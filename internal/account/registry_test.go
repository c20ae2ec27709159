package account_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leap-se/bitmask-client/internal/account"
	"go.uber.org/zap"
)

var ctx = context.Background()

// ── Stubs ────────────────────────────────────────────────────────────────

type stubDeleter struct {
	err     error
	deleted []string
}

func (s *stubDeleter) DeleteProvider(_ context.Context, domain string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, domain)
	return nil
}

func newRegistry(addrs ...string) *account.Registry {
	r := account.NewRegistry(zap.NewNop())
	for _, a := range addrs {
		r.InsertUnique(account.New(a))
	}
	return r
}

func addresses(r *account.Registry) []string {
	var out []string
	for _, a := range r.List() {
		out = append(out, a.Address())
	}
	return out
}

// ── Account ──────────────────────────────────────────────────────────────

func TestNew_bareDomainBecomesPlaceholder(t *testing.T) {
	a := account.New("riseup.net")
	if a.Address() != "@riseup.net" {
		t.Errorf("Address: got %q, want %q", a.Address(), "@riseup.net")
	}
	if a.Domain() != "riseup.net" {
		t.Errorf("Domain: got %q", a.Domain())
	}
	if a.Userpart() != "" || !a.IsPlaceholder() {
		t.Errorf("expected placeholder, userpart %q", a.Userpart())
	}
	if a.ID() != a.Address() {
		t.Errorf("ID should equal address")
	}
	if a.Authenticated() || a.SessionID() != "" {
		t.Error("new account must not be authenticated")
	}
}

func TestSetAddress(t *testing.T) {
	a := account.New("alice@riseup.net")
	if a.Userpart() != "alice" || a.Domain() != "riseup.net" {
		t.Errorf("unexpected split: %q / %q", a.Userpart(), a.Domain())
	}
	a.SetAddress("demo.bitmask.net")
	if a.Address() != "@demo.bitmask.net" {
		t.Errorf("SetAddress without @: got %q", a.Address())
	}
}

// ── Lookup / FindByAddress ───────────────────────────────────────────────

func TestLookup_isPure(t *testing.T) {
	r := newRegistry("riseup.net")

	a, m := r.Lookup("alice@riseup.net")
	if m != account.MatchDomain {
		t.Fatalf("Match: got %s, want domain", m)
	}
	if a.Address() != "@riseup.net" {
		t.Errorf("Lookup must not modify the account, got %q", a.Address())
	}

	if _, m := r.Lookup("@riseup.net"); m != account.MatchExact {
		t.Errorf("Match: got %s, want exact", m)
	}
	if _, m := r.Lookup("riseup.net"); m != account.MatchExact {
		t.Errorf("bare domain should match exactly after normalization, got %s", m)
	}
	if a, m := r.Lookup("bob@other.org"); a != nil || m != account.MatchNone {
		t.Errorf("expected no match, got %v/%s", a, m)
	}
}

func TestFindByAddress_upgradesPlaceholder(t *testing.T) {
	r := newRegistry("riseup.net", "demo.bitmask.net")
	placeholder, _ := r.Lookup("@riseup.net")

	a := r.FindByAddress("alice@riseup.net")
	if a != placeholder {
		t.Fatal("expected the placeholder instance to be returned")
	}
	if a.Address() != "alice@riseup.net" {
		t.Errorf("Address: got %q, want alice@riseup.net", a.Address())
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}
}

func TestFindByAddress_idempotent(t *testing.T) {
	r := newRegistry("riseup.net")

	first := r.FindByAddress("alice@riseup.net")
	second := r.FindByAddress("alice@riseup.net")
	if first == nil || first != second {
		t.Fatalf("expected same instance, got %p and %p", first, second)
	}
}

func TestFindByAddress_bareDomain(t *testing.T) {
	r := newRegistry("riseup.net")
	a := r.FindByAddress("riseup.net")
	if a == nil || a.Address() != "@riseup.net" {
		t.Fatalf("expected placeholder, got %v", a)
	}
}

func TestFindByAddress_miss(t *testing.T) {
	r := newRegistry("riseup.net")
	if a := r.FindByAddress("alice@other.org"); a != nil {
		t.Errorf("expected nil, got %v", a)
	}
}

func TestFindByAddress_userAccountDoesNotMatchOtherUser(t *testing.T) {
	r := newRegistry("alice@riseup.net")
	if a := r.FindByAddress("bob@riseup.net"); a != nil {
		t.Errorf("expected nil without a placeholder, got %v", a)
	}
}

func TestReconcileIdentity(t *testing.T) {
	r := newRegistry("riseup.net")
	a, _ := r.Lookup("alice@riseup.net")
	r.ReconcileIdentity(a, "alice@riseup.net")
	if got, m := r.Lookup("alice@riseup.net"); got != a || m != account.MatchExact {
		t.Errorf("expected exact match after reconcile, got %v/%s", got, m)
	}
}

func TestFindOrCreate(t *testing.T) {
	r := newRegistry("riseup.net")

	existing := r.FindOrCreate("alice@riseup.net")
	if r.Len() != 1 || existing.Address() != "alice@riseup.net" {
		t.Errorf("expected placeholder upgrade, got %v", addresses(r))
	}

	created := r.FindOrCreate("bob@other.org")
	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}
	if r.List()[1] != created {
		t.Error("new account must be appended")
	}
}

// ── InsertUnique / SeedFromDomains ───────────────────────────────────────

func TestInsertUnique_sameID(t *testing.T) {
	r := account.NewRegistry(zap.NewNop())
	if !r.InsertUnique(account.New("riseup.net")) {
		t.Error("first insert should succeed")
	}
	if r.InsertUnique(account.New("@riseup.net")) {
		t.Error("second insert with same id should be a no-op")
	}
	if r.Len() != 1 {
		t.Errorf("Len: got %d, want 1", r.Len())
	}
}

func TestSeedFromDomains_skipsDuplicates(t *testing.T) {
	r := account.NewRegistry(zap.NewNop())
	r.SeedFromDomains([]string{"a.org", "b.org", "a.org"})
	r.SeedFromDomains([]string{"b.org", "c.org"})

	got := addresses(r)
	want := []string{"@a.org", "@b.org", "@c.org"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// ── PromoteActive ────────────────────────────────────────────────────────

func TestPromoteActive_evictsSameDomain(t *testing.T) {
	r := newRegistry("a.org", "b.org", "c.org")

	x := account.NewWithStatus("u@b.org", true, "")
	r.PromoteActive(x)
	if got := addresses(r); fmt.Sprint(got) != "[u@b.org @a.org @c.org]" {
		t.Fatalf("after first promote: %v", got)
	}

	y := account.NewWithStatus("v@b.org", true, "")
	r.PromoteActive(y)

	if r.Current() != y {
		t.Errorf("Current: got %v, want %v", r.Current(), y)
	}
	count := 0
	for _, a := range r.List() {
		if a.Domain() == "b.org" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one b.org entry, got %d", count)
	}
}

func TestPromoteActive_lastWins(t *testing.T) {
	r := newRegistry("a.org", "b.org")
	r.PromoteActive(account.New("u@a.org"))
	r.PromoteActive(account.New("v@b.org"))

	if got := addresses(r); fmt.Sprint(got) != "[v@b.org u@a.org]" {
		t.Errorf("got %v", got)
	}
}

// ── Remove ───────────────────────────────────────────────────────────────

func TestRemove_soleAccount(t *testing.T) {
	r := newRegistry("a.org")
	d := &stubDeleter{}

	next, err := r.Remove(ctx, d, r.Current())
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if next != nil {
		t.Errorf("expected nil next, got %v", next)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %v", addresses(r))
	}
	if len(d.deleted) != 1 || d.deleted[0] != "a.org" {
		t.Errorf("deleted: %v", d.deleted)
	}
}

func TestRemove_nextIndex(t *testing.T) {
	cases := []struct {
		name  string
		index int
		want  string
	}{
		{"middle", 2, "@d.org"},
		{"first", 0, "@b.org"},
		{"last clamps", 4, "@d.org"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRegistry("a.org", "b.org", "c.org", "d.org", "e.org")
			target := r.List()[tc.index]

			next, err := r.Remove(ctx, &stubDeleter{}, target)
			if err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if r.Len() != 4 {
				t.Fatalf("Len: got %d, want 4", r.Len())
			}
			if tc.index < 4 && next != r.List()[tc.index] {
				t.Errorf("next should be the entry now at index %d", tc.index)
			}
			if next.Address() != tc.want {
				t.Errorf("next: got %q, want %q", next.Address(), tc.want)
			}
		})
	}
}

func TestRemove_unknownAccountDefaultsToFirst(t *testing.T) {
	r := newRegistry("a.org", "b.org")
	next, err := r.Remove(ctx, &stubDeleter{}, account.New("zzz.org"))
	if err != nil {
		t.Fatal(err)
	}
	if next.Address() != "@a.org" {
		t.Errorf("next: got %q, want @a.org", next.Address())
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}
}

func TestRemove_deletionFailureLeavesRegistry(t *testing.T) {
	r := newRegistry("a.org", "b.org")
	boom := errors.New("core unavailable")

	next, err := r.Remove(ctx, &stubDeleter{err: boom}, r.Current())
	var delErr *account.ProviderDeletionError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected ProviderDeletionError, got %v", err)
	}
	if delErr.Domain != "a.org" || !errors.Is(err, boom) {
		t.Errorf("unexpected error detail: %v", delErr)
	}
	if next != nil {
		t.Errorf("expected nil next on failure")
	}
	if got := addresses(r); fmt.Sprint(got) != "[@a.org @b.org]" {
		t.Errorf("registry changed on failure: %v", got)
	}
}

// ── Concurrency ──────────────────────────────────────────────────────────

func TestRegistry_concurrentPromote(t *testing.T) {
	r := newRegistry("a.org", "b.org", "c.org")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			domain := []string{"a.org", "b.org", "c.org"}[i%3]
			r.PromoteActive(account.New(fmt.Sprintf("user%d@%s", i, domain)))
			r.FindByAddress("someone@" + domain)
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, a := range r.List() {
		seen[a.Domain()]++
	}
	for domain, n := range seen {
		if n != 1 {
			t.Errorf("domain %s has %d entries", domain, n)
		}
	}
}
