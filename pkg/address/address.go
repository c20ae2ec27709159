// Package address provides parsing and normalization for account addresses.
//
// Address format: [user]@domain
//
// Examples:
//
//	alice@riseup.net   (account bound to a user)
//	@riseup.net        (provider-only placeholder)
//
// A placeholder carries an empty user part and stands for a known provider
// with no logged-in user. Every normalized address contains an '@'.
package address

import (
	"fmt"
	"regexp"
	"strings"
)

const sep = "@"

// domainRe matches the provider domains accepted from user input.
var domainRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// Address represents a parsed account address.
type Address struct {
	User   string // e.g. "alice"; empty for a placeholder
	Domain string // e.g. "riseup.net"
}

// Parse parses and validates an address typed by a user. A bare domain is
// accepted and yields a placeholder.
func Parse(raw string) (*Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("address must not be empty")
	}
	if strings.Count(raw, sep) > 1 {
		return nil, fmt.Errorf("address %q contains more than one %q", raw, sep)
	}

	n := Normalize(raw)
	a := &Address{User: Userpart(n), Domain: Domain(n)}

	if a.Domain == "" {
		return nil, fmt.Errorf("missing domain in address %q", raw)
	}
	if !domainRe.MatchString(a.Domain) {
		return nil, fmt.Errorf("domain %q contains invalid characters", a.Domain)
	}
	if strings.ContainsAny(a.User, " \t/\\?#") {
		return nil, fmt.Errorf("user %q contains invalid characters", a.User)
	}
	return a, nil
}

// Split checks only the structure of a full user@domain address reported
// by the core: exactly one '@' with a non-empty user part and domain. The
// domain is lowercased and otherwise taken as is, so IDN names and
// host:port forms pass.
func Split(raw string) (*Address, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, sep) != 1 {
		return nil, fmt.Errorf("address %q must contain exactly one %q", raw, sep)
	}
	user, domain, _ := strings.Cut(raw, sep)
	if user == "" {
		return nil, fmt.Errorf("missing user in address %q", raw)
	}
	if domain == "" {
		return nil, fmt.Errorf("missing domain in address %q", raw)
	}
	return &Address{User: user, Domain: strings.ToLower(domain)}, nil
}

// MustParse parses an address and panics on error. Useful in tests and init blocks.
func MustParse(raw string) *Address {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the canonical user@domain form.
func (a *Address) String() string {
	return a.User + sep + a.Domain
}

// IsPlaceholder reports whether the address has no user part.
func (a *Address) IsPlaceholder() bool {
	return a.User == ""
}

// Normalize treats input without an '@' as a bare domain and prefixes it
// with '@'. Input that already contains an '@' is returned unchanged.
func Normalize(s string) string {
	if !strings.Contains(s, sep) {
		return sep + s
	}
	return s
}

// DomainForm returns the placeholder address for the domain of s, whether
// or not s contains an '@'.
func DomainForm(s string) string {
	return sep + Domain(Normalize(s))
}

// Domain returns the substring after the first '@', or s itself when s
// has no '@'.
func Domain(s string) string {
	_, domain, found := strings.Cut(s, sep)
	if !found {
		return s
	}
	return domain
}

// Userpart returns the substring before the first '@', or "" when s has no '@'.
func Userpart(s string) string {
	user, _, found := strings.Cut(s, sep)
	if !found {
		return ""
	}
	return user
}

// Placeholder returns the provider-only address for domain.
func Placeholder(domain string) string {
	return sep + domain
}
