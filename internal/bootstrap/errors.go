package bootstrap

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned by Run after the first call.
var ErrAlreadyRun = errors.New("bootstrap already ran")

// DirectoryFetchError means the provider list could not be fetched.
// It ends the bootstrap.
type DirectoryFetchError struct {
	Err error
}

func (e *DirectoryFetchError) Error() string {
	return fmt.Sprintf("fetch provider list: %v", e.Err)
}

func (e *DirectoryFetchError) Unwrap() error { return e.Err }

// AuthStatusFetchError means the authenticated account list could not be
// fetched. It ends the bootstrap.
type AuthStatusFetchError struct {
	Err error
}

func (e *AuthStatusFetchError) Error() string {
	return fmt.Sprintf("fetch authenticated accounts: %v", e.Err)
}

func (e *AuthStatusFetchError) Unwrap() error { return e.Err }

// VPNProbeError is a failed readiness probe for one provider. It is logged
// and the provider counts as not ready.
type VPNProbeError struct {
	Domain string
	Err    error
}

func (e *VPNProbeError) Error() string {
	return fmt.Sprintf("probe vpn for %s: %v", e.Domain, e.Err)
}

func (e *VPNProbeError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
