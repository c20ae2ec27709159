package account

import "fmt"

// ProviderDeletionError is returned by Registry.Remove when the core could
// not delete the provider configuration. The registry is left unchanged.
type ProviderDeletionError struct {
	Domain string
	Err    error
}

func (e *ProviderDeletionError) Error() string {
	return fmt.Sprintf("delete provider %s: %v", e.Domain, e.Err)
}

func (e *ProviderDeletionError) Unwrap() error { return e.Err }

// LoginError is returned when authentication fails. The account is unchanged.
type LoginError struct {
	Address string
	Err     error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login %s: %v", e.Address, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// LogoutError is returned when the core could not close a session.
type LogoutError struct {
	Address string
	Err     error
}

func (e *LogoutError) Error() string {
	return fmt.Sprintf("logout %s: %v", e.Address, e.Err)
}

func (e *LogoutError) Unwrap() error { return e.Err }

// AccountCreationError is returned when signup fails.
type AccountCreationError struct {
	Address string
	Err     error
}

func (e *AccountCreationError) Error() string {
	return fmt.Sprintf("create account %s: %v", e.Address, e.Err)
}

func (e *AccountCreationError) Unwrap() error { return e.Err }
