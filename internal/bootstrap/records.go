package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/pkg/address"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
	"go.uber.org/zap"
)

// AuthRecord is a validated entry of the core's session list.
type AuthRecord struct {
	UserID        string
	Authenticated bool
	SessionID     string // opaque; canonicalized when it is a uuid
}

// ParseAuthRecord checks one session list entry. Only the address
// structure is enforced: the core already holds a session for it.
func ParseAuthRecord(u bitmask.User) (AuthRecord, error) {
	addr, err := address.Split(u.UserID)
	if err != nil {
		return AuthRecord{}, fmt.Errorf("userid: %w", err)
	}

	rec := AuthRecord{UserID: addr.String(), Authenticated: u.Authenticated, SessionID: u.UUID}
	if id, err := uuid.Parse(u.UUID); err == nil {
		rec.SessionID = id.String()
	}
	return rec, nil
}

// parseAuthRecords keeps the valid entries in order and logs the rest.
func parseAuthRecords(users []bitmask.User, logger *zap.Logger) []AuthRecord {
	records := make([]AuthRecord, 0, len(users))
	for i, u := range users {
		rec, err := ParseAuthRecord(u)
		if err != nil {
			logger.Warn("bootstrap: skipping malformed session record",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// SeedProviders fetches the provider list and adds a placeholder account
// for every domain. The returned error is a *DirectoryFetchError.
func SeedProviders(ctx context.Context, registry *account.Registry, dir Directory) ([]string, error) {
	domains, err := dir.ListProviders(ctx, false)
	if err != nil {
		return nil, &DirectoryFetchError{Err: err}
	}
	registry.SeedFromDomains(domains)
	return domains, nil
}

// RestoreSessions fetches the accounts the core holds a session for and
// promotes each one in the order received, so the last becomes current.
// It returns how many were promoted. The returned error is a
// *AuthStatusFetchError.
func RestoreSessions(ctx context.Context, registry *account.Registry, sessions SessionLister, logger *zap.Logger) (int, error) {
	users, err := sessions.ListUsers(ctx)
	if err != nil {
		return 0, &AuthStatusFetchError{Err: err}
	}

	records := parseAuthRecords(users, logger)
	for _, rec := range records {
		registry.PromoteActive(account.NewWithStatus(rec.UserID, rec.Authenticated, rec.SessionID))
	}
	return len(records), nil
}
