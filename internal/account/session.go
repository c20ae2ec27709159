package account

import (
	"context"
	"errors"

	"github.com/leap-se/bitmask-client/pkg/address"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"go.uber.org/zap"
)

// Authenticator is the session part of the core API consumed by accounts.
type Authenticator interface {
	Authenticate(ctx context.Context, address, password string, autoSetupProvider bool) (*bitmask.AuthResult, error)
	Logout(ctx context.Context, id string) error
	CreateUser(ctx context.Context, address, password, invite string) error
}

// Login authenticates acct with password. When the core opens a session
// the account is marked authenticated, keeps its address and is promoted
// to the front of the registry. A reply without a session uuid leaves the
// account unauthenticated and is not an error.
func (r *Registry) Login(ctx context.Context, auth Authenticator, acct *Account, password string, autoSetupProvider bool) error {
	addr := acct.Address()
	if acct.IsPlaceholder() {
		return &LoginError{Address: addr, Err: errors.New("account has no user part")}
	}

	res, err := auth.Authenticate(ctx, addr, password, autoSetupProvider)
	if err != nil {
		return &LoginError{Address: addr, Err: err}
	}
	if res == nil || res.UUID == "" {
		r.logger.Warn("login returned no session", zap.String("address", addr))
		return nil
	}

	acct.markAuthenticated(res.UUID)
	r.PromoteActive(acct)
	r.logger.Info("logged in", zap.String("address", addr))
	return nil
}

// Logout closes the session of acct. On success the account collapses
// back to its provider placeholder.
func (r *Registry) Logout(ctx context.Context, auth Authenticator, acct *Account) error {
	id := acct.ID()
	if err := auth.Logout(ctx, id); err != nil {
		return &LogoutError{Address: id, Err: err}
	}

	r.mu.Lock()
	acct.markLoggedOut()
	r.mu.Unlock()

	r.logger.Info("logged out", zap.String("address", id))
	return nil
}

// Create registers a new user with the provider and returns an account for
// it. The account is not added to any registry.
func Create(ctx context.Context, auth Authenticator, addr, password, invite string) (*Account, error) {
	parsed, err := address.Parse(addr)
	if err != nil {
		return nil, &AccountCreationError{Address: addr, Err: err}
	}
	if parsed.IsPlaceholder() {
		return nil, &AccountCreationError{Address: addr, Err: errors.New("a user name is required")}
	}
	if err := auth.CreateUser(ctx, parsed.String(), password, invite); err != nil {
		return nil, &AccountCreationError{Address: addr, Err: err}
	}
	return New(parsed.String()), nil
}
