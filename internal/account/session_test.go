package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/pkg/bitmask"
)

type stubAuth struct {
	uuid      string
	authErr   error
	logoutErr error
	createErr error
	loggedOut []string
	created   []string
}

func (s *stubAuth) Authenticate(_ context.Context, _, _ string, _ bool) (*bitmask.AuthResult, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return &bitmask.AuthResult{UUID: s.uuid}, nil
}

func (s *stubAuth) Logout(_ context.Context, id string) error {
	if s.logoutErr != nil {
		return s.logoutErr
	}
	s.loggedOut = append(s.loggedOut, id)
	return nil
}

func (s *stubAuth) CreateUser(_ context.Context, addr, _, _ string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, addr)
	return nil
}

type stubReader struct {
	calls int
	err   error
}

func (s *stubReader) ReadProvider(_ context.Context, domain string) (*bitmask.Provider, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &bitmask.Provider{Domain: domain, Name: "Riseup"}, nil
}

func TestLogin_success(t *testing.T) {
	r := newRegistry("a.org", "riseup.net")
	acct := r.FindByAddress("alice@riseup.net")

	auth := &stubAuth{uuid: "6f1f0a7e-8a55-4b2e-9a49-1d1c1f8e3b11"}
	if err := r.Login(ctx, auth, acct, "pass", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !acct.Authenticated() {
		t.Error("expected authenticated")
	}
	if acct.SessionID() != auth.uuid {
		t.Errorf("SessionID: got %q", acct.SessionID())
	}
	if acct.Address() != "alice@riseup.net" {
		t.Errorf("address must be unchanged, got %q", acct.Address())
	}
	if r.Current() != acct {
		t.Error("logged-in account should be promoted to index 0")
	}
}

func TestLogin_noSession(t *testing.T) {
	r := newRegistry("riseup.net")
	acct := r.FindByAddress("alice@riseup.net")

	if err := r.Login(ctx, &stubAuth{}, acct, "pass", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.Authenticated() {
		t.Error("reply without uuid must not authenticate")
	}
}

func TestLogin_failureLeavesAccount(t *testing.T) {
	r := newRegistry("a.org", "riseup.net")
	acct := r.FindByAddress("alice@riseup.net")
	boom := errors.New("bad password")

	err := r.Login(ctx, &stubAuth{authErr: boom}, acct, "pass", false)
	var loginErr *account.LoginError
	if !errors.As(err, &loginErr) || !errors.Is(err, boom) {
		t.Fatalf("expected LoginError wrapping cause, got %v", err)
	}
	if acct.Authenticated() || acct.SessionID() != "" {
		t.Error("account state changed on failure")
	}
	if r.Current() == acct {
		t.Error("account must not be promoted on failure")
	}
}

func TestLogin_placeholderRejected(t *testing.T) {
	r := newRegistry("riseup.net")
	err := r.Login(ctx, &stubAuth{uuid: "x"}, r.Current(), "pass", false)
	var loginErr *account.LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("expected LoginError, got %v", err)
	}
}

func TestLogout_collapsesAddress(t *testing.T) {
	r := account.NewRegistry(nil)
	acct := account.NewWithStatus("alice@riseup.net", true, "sid")
	r.PromoteActive(acct)

	auth := &stubAuth{}
	if err := r.Logout(ctx, auth, acct); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if acct.Authenticated() || acct.SessionID() != "" {
		t.Error("expected session cleared")
	}
	if acct.Address() != "@riseup.net" {
		t.Errorf("Address: got %q, want @riseup.net", acct.Address())
	}
	if len(auth.loggedOut) != 1 || auth.loggedOut[0] != "alice@riseup.net" {
		t.Errorf("logout called with %v", auth.loggedOut)
	}
}

func TestLogout_failure(t *testing.T) {
	r := account.NewRegistry(nil)
	acct := account.NewWithStatus("alice@riseup.net", true, "sid")
	r.PromoteActive(acct)

	err := r.Logout(ctx, &stubAuth{logoutErr: errors.New("offline")}, acct)
	var logoutErr *account.LogoutError
	if !errors.As(err, &logoutErr) {
		t.Fatalf("expected LogoutError, got %v", err)
	}
	if !acct.Authenticated() || acct.Address() != "alice@riseup.net" {
		t.Error("account changed on failed logout")
	}
}

func TestCreate(t *testing.T) {
	auth := &stubAuth{}
	acct, err := account.Create(ctx, auth, "bob@riseup.net", "pass", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if acct.Address() != "bob@riseup.net" || acct.Authenticated() {
		t.Errorf("unexpected account %v", acct)
	}
	if len(auth.created) != 1 {
		t.Errorf("CreateUser calls: %v", auth.created)
	}
}

func TestCreate_errors(t *testing.T) {
	cases := []struct {
		name string
		addr string
		auth *stubAuth
	}{
		{"placeholder", "riseup.net", &stubAuth{}},
		{"invalid domain", "bob@Bad Domain", &stubAuth{}},
		{"core failure", "bob@riseup.net", &stubAuth{createErr: errors.New("taken")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := account.Create(ctx, tc.auth, tc.addr, "pass", "")
			var createErr *account.AccountCreationError
			if !errors.As(err, &createErr) {
				t.Fatalf("expected AccountCreationError, got %v", err)
			}
		})
	}
}

func TestProvider_cachedAfterFirstRead(t *testing.T) {
	acct := account.New("alice@riseup.net")
	r := &stubReader{}

	p1, err := acct.Provider(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := acct.Provider(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 || r.calls != 1 {
		t.Errorf("expected one read and cached result, got %d reads", r.calls)
	}
	if p1.Domain != "riseup.net" {
		t.Errorf("Domain: got %q", p1.Domain)
	}
}

func TestProvider_errorNotCached(t *testing.T) {
	acct := account.New("riseup.net")
	r := &stubReader{err: errors.New("unknown provider")}

	if _, err := acct.Provider(ctx, r); err == nil {
		t.Fatal("expected error")
	}
	r.err = nil
	if _, err := acct.Provider(ctx, r); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if r.calls != 2 {
		t.Errorf("calls: got %d, want 2", r.calls)
	}
}
