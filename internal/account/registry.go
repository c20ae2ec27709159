package account

import (
	"context"
	"sync"

	"github.com/leap-se/bitmask-client/pkg/address"
	"go.uber.org/zap"
)

// Match describes how Lookup found an account.
type Match int

const (
	MatchNone   Match = iota
	MatchExact        // address matched exactly
	MatchDomain       // only the domain placeholder matched
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchDomain:
		return "domain"
	default:
		return "none"
	}
}

// ProviderDeleter deletes the core's configuration for a provider.
type ProviderDeleter interface {
	DeleteProvider(ctx context.Context, domain string) error
}

// Registry is the ordered list of known accounts. Index 0 is the current
// account. Every method is atomic with respect to the others.
type Registry struct {
	mu       sync.RWMutex
	accounts []*Account
	logger   *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// List returns a snapshot of the accounts in order.
func (r *Registry) List() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// Current returns the account at index 0, or nil when the registry is empty.
func (r *Registry) Current() *Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.accounts) == 0 {
		return nil
	}
	return r.accounts[0]
}

// Lookup finds the account for addr without modifying anything. It tries
// the exact normalized address first and then the domain placeholder.
func (r *Registry) Lookup(addr string) (*Account, Match) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(addr)
}

func (r *Registry) lookupLocked(addr string) (*Account, Match) {
	want := address.Normalize(addr)
	for _, a := range r.accounts {
		if a.Address() == want {
			return a, MatchExact
		}
	}
	placeholder := address.DomainForm(addr)
	for _, a := range r.accounts {
		if a.Address() == placeholder {
			return a, MatchDomain
		}
	}
	return nil, MatchNone
}

// ReconcileIdentity upgrades acct to addr in place, so the same Account
// carries over from placeholder to user identity.
func (r *Registry) ReconcileIdentity(acct *Account, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconcileLocked(acct, addr)
}

func (r *Registry) reconcileLocked(acct *Account, addr string) {
	prev := acct.Address()
	acct.SetAddress(addr)
	if prev != acct.Address() {
		r.logger.Debug("account identity reconciled",
			zap.String("from", prev),
			zap.String("to", acct.Address()),
		)
	}
}

// FindByAddress looks addr up and, when only the domain placeholder
// matched, reconciles that placeholder to addr before returning it.
// Returns nil when nothing matched.
func (r *Registry) FindByAddress(addr string) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(addr)
}

func (r *Registry) findLocked(addr string) *Account {
	a, m := r.lookupLocked(addr)
	if m == MatchDomain {
		r.reconcileLocked(a, addr)
	}
	return a
}

// FindOrCreate is FindByAddress, appending a new account on a miss.
func (r *Registry) FindOrCreate(addr string) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.findLocked(addr); a != nil {
		return a
	}
	a := New(addr)
	r.accounts = append(r.accounts, a)
	return a
}

// InsertUnique appends acct unless an account with the same ID exists.
// It reports whether acct was appended.
func (r *Registry) InsertUnique(acct *Account) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertUniqueLocked(acct)
}

func (r *Registry) insertUniqueLocked(acct *Account) bool {
	id := acct.ID()
	for _, a := range r.accounts {
		if a.ID() == id {
			return false
		}
	}
	r.accounts = append(r.accounts, acct)
	return true
}

// PromoteActive removes every account sharing acct's domain and inserts
// acct at index 0.
func (r *Registry) PromoteActive(acct *Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	domain := acct.Domain()
	kept := make([]*Account, 0, len(r.accounts)+1)
	kept = append(kept, acct)
	evicted := 0
	for _, a := range r.accounts {
		if a.Domain() == domain {
			evicted++
			continue
		}
		kept = append(kept, a)
	}
	r.accounts = kept

	r.logger.Debug("account promoted",
		zap.String("address", acct.Address()),
		zap.Int("evicted", evicted),
	)
}

// SeedFromDomains adds a placeholder account for every domain, skipping
// domains already present.
func (r *Registry) SeedFromDomains(domains []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for _, d := range domains {
		if r.insertUniqueLocked(New(d)) {
			added++
		}
	}
	r.logger.Debug("registry seeded",
		zap.Int("domains", len(domains)),
		zap.Int("added", added),
	)
}

// Remove deletes the provider configuration of acct through d and, on
// success, drops every account with acct's ID. It returns the account that
// took the removed one's place, clamped to the end of the list, or nil when
// the registry became empty. On failure the registry is unchanged.
func (r *Registry) Remove(ctx context.Context, d ProviderDeleter, acct *Account) (*Account, error) {
	domain := acct.Domain()
	if err := d.DeleteProvider(ctx, domain); err != nil {
		return nil, &ProviderDeletionError{Domain: domain, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := acct.ID()
	index := -1
	kept := make([]*Account, 0, len(r.accounts))
	for i, a := range r.accounts {
		if a.ID() == id {
			if index == -1 {
				index = i
			}
			continue
		}
		kept = append(kept, a)
	}
	r.accounts = kept

	r.logger.Info("account removed",
		zap.String("address", id),
		zap.Int("index", index),
		zap.Int("remaining", len(kept)),
	)

	switch {
	case len(r.accounts) == 0:
		return nil, nil
	case index >= len(r.accounts):
		index--
	case index == -1:
		index = 0
	}
	return r.accounts[index], nil
}
