// Package account holds the in-memory registry of known accounts and the
// login, logout, signup and removal workflows that mutate it.
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/leap-se/bitmask-client/pkg/address"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
)

// ProviderReader resolves a provider definition by domain.
type ProviderReader interface {
	ReadProvider(ctx context.Context, domain string) (*bitmask.Provider, error)
}

// Account is a provider, optionally bound to a user identity.
// The address is always user@domain; a provider-only account has the
// placeholder form @domain. An Account is safe for concurrent use.
type Account struct {
	mu            sync.RWMutex
	addr          string
	authenticated bool
	sessionID     string
	provider      *bitmask.Provider
}

// New creates an unauthenticated account. A bare domain yields a placeholder.
func New(addr string) *Account {
	a := &Account{}
	a.SetAddress(addr)
	return a
}

// NewWithStatus creates an account with a known session state, as reported
// by the core's session list.
func NewWithStatus(addr string, authenticated bool, sessionID string) *Account {
	a := New(addr)
	a.authenticated = authenticated
	a.sessionID = sessionID
	return a
}

// ID identifies the account. The core keys sessions by address and the
// session uuid is unknown before login, so the address is the id.
func (a *Account) ID() string {
	return a.Address()
}

// Address returns the canonical user@domain address.
func (a *Account) Address() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.addr
}

// SetAddress replaces the address. Input without an '@' is taken as a domain.
func (a *Account) SetAddress(addr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addr = address.Normalize(addr)
}

// Domain returns the provider domain.
func (a *Account) Domain() string {
	return address.Domain(a.Address())
}

// Userpart returns the user part, empty for a placeholder.
func (a *Account) Userpart() string {
	return address.Userpart(a.Address())
}

// IsPlaceholder reports whether the account has no user part.
func (a *Account) IsPlaceholder() bool {
	return a.Userpart() == ""
}

// Authenticated reports whether the account holds a session.
func (a *Account) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authenticated
}

// SessionID returns the session uuid assigned by the core, or "" when unknown.
func (a *Account) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// Provider returns the provider definition, reading it through r on first
// use and caching it afterwards.
func (a *Account) Provider(ctx context.Context, r ProviderReader) (*bitmask.Provider, error) {
	a.mu.RLock()
	p := a.provider
	a.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	domain := a.Domain()
	p, err := r.ReadProvider(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("read provider %s: %w", domain, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.provider == nil {
		a.provider = p
	}
	return a.provider, nil
}

// String implements fmt.Stringer.
func (a *Account) String() string {
	return a.Address()
}

// markAuthenticated records a successful login.
func (a *Account) markAuthenticated(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticated = true
	a.sessionID = sessionID
}

// markLoggedOut drops the session and collapses the address back to its
// provider placeholder.
func (a *Account) markLoggedOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticated = false
	a.sessionID = ""
	a.addr = address.Placeholder(address.Domain(a.addr))
}
