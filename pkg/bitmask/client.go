package bitmask

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the core rejects the API token.
var ErrUnauthorized = errors.New("bitmask API token rejected")

// APIError is an error reported by the core inside a well-formed reply.
type APIError struct {
	Command string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// AuthResult is returned by Authenticate. UUID is empty when the core did
// not open a session.
type AuthResult struct {
	UUID     string `json:"uuid"`
	LCLToken string `json:"lcl_token,omitempty"`
}

// User is one entry of the core's session list.
type User struct {
	UserID        string `json:"userid"`
	Authenticated bool   `json:"authenticated"`
	UUID          string `json:"uuid,omitempty"`
}

// Provider holds the provider definition read from the core.
type Provider struct {
	Domain      string   `json:"domain"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	APIURI      string   `json:"api_uri,omitempty"`
	Services    []string `json:"services,omitempty"`
}

// VPNStatus is the reply of CheckVPN.
type VPNStatus struct {
	VPN         string `json:"vpn"`
	Installed   bool   `json:"installed"`
	VPNReady    bool   `json:"vpn_ready"`
	CertExpires string `json:"cert_expires,omitempty"`
}

// Ready reports whether the VPN service is enabled, installed and able to
// start for the probed provider.
func (s *VPNStatus) Ready() bool {
	return s.VPN != "disabled" && s.Installed && s.VPNReady
}

// CallObserver is invoked after every API call.
type CallObserver func(command string, elapsed time.Duration, err error)

// Client talks to the bitmask core over its local HTTP API.
type Client struct {
	apiBase    string
	httpClient *http.Client
	token      string
	limiter    *rate.Limiter
	directory  *directoryCache
	observe    CallObserver
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// WithAPIToken attaches the core's API token to every request.
func WithAPIToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithDirectoryCacheTTL enables in-memory caching of the provider list.
func WithDirectoryCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl > 0 {
			c.directory = newDirectoryCache(ttl)
		}
		return nil
	}
}

// WithRateLimit throttles outbound calls to rps requests per second with
// the given burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithCallObserver registers a callback run after every API call.
func WithCallObserver(fn CallObserver) Option {
	return func(c *Client) error {
		c.observe = fn
		return nil
	}
}

// New creates a Client for the core listening at apiBase.
//
//	c, err := bitmask.New("http://localhost:7070",
//	    bitmask.WithTokenFile(tokenPath),
//	    bitmask.WithDirectoryCacheTTL(5*time.Minute),
//	)
func New(apiBase string, opts ...Option) (*Client, error) {
	if apiBase == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}
	c := &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(apiBase string, opts ...Option) *Client {
	c, err := New(apiBase, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Authenticate logs address in. autoSetupProvider asks the core to
// bootstrap the provider configuration when it is not known yet.
func (c *Client) Authenticate(ctx context.Context, address, password string, autoSetupProvider bool) (*AuthResult, error) {
	var res AuthResult
	if err := c.call(ctx, &res, []any{address, password, autoSetupProvider}, "bonafide", "user", "authenticate"); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout closes the session of the account identified by id.
func (c *Client) Logout(ctx context.Context, id string) error {
	return c.call(ctx, nil, []any{id}, "bonafide", "user", "logout")
}

// CreateUser registers a new account on the provider. An empty invite is
// sent as null.
func (c *Client) CreateUser(ctx context.Context, address, password, invite string) error {
	var inv any
	if invite != "" {
		inv = invite
	}
	return c.call(ctx, nil, []any{address, password, inv, true}, "bonafide", "user", "create")
}

// ListUsers returns the accounts the core currently holds a session for.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.call(ctx, &users, nil, "bonafide", "user", "list"); err != nil {
		return nil, err
	}
	return users, nil
}

// ListProviders returns the domains of the configured providers. When
// refresh is false a cached list may be returned.
func (c *Client) ListProviders(ctx context.Context, refresh bool) ([]string, error) {
	if c.directory != nil && !refresh {
		if domains, ok := c.directory.get(); ok {
			return domains, nil
		}
	}

	var providers []Provider
	if err := c.call(ctx, &providers, []any{refresh}, "bonafide", "provider", "list"); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(providers))
	for _, p := range providers {
		if p.Domain != "" {
			domains = append(domains, p.Domain)
		}
	}

	if c.directory != nil {
		c.directory.set(domains)
	}
	return domains, nil
}

// ReadProvider returns the provider definition for domain.
func (c *Client) ReadProvider(ctx context.Context, domain string) (*Provider, error) {
	var p Provider
	if err := c.call(ctx, &p, []any{domain}, "bonafide", "provider", "read"); err != nil {
		return nil, err
	}
	if p.Domain == "" {
		p.Domain = domain
	}
	return &p, nil
}

// DeleteProvider removes the provider configuration for domain.
func (c *Client) DeleteProvider(ctx context.Context, domain string) error {
	if err := c.call(ctx, nil, []any{domain}, "bonafide", "provider", "delete"); err != nil {
		return err
	}
	if c.directory != nil {
		c.directory.invalidate()
	}
	return nil
}

// CheckVPN reports whether the VPN service can be used with domain.
func (c *Client) CheckVPN(ctx context.Context, domain string) (*VPNStatus, error) {
	var s VPNStatus
	if err := c.call(ctx, &s, []any{domain}, "vpn", "check"); err != nil {
		return nil, err
	}
	return &s, nil
}

// envelope is the reply shape shared by every API call.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// call posts args to /API/<path...> and decodes the result into out.
func (c *Client) call(ctx context.Context, out any, args []any, path ...string) (err error) {
	command := strings.Join(path, ".")
	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(command, time.Since(start), err) }()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", command, err)
		}
	}

	if args == nil {
		args = []any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: marshal arguments: %w", command, err)
	}

	url := c.apiBase + "/API/" + strings.Join(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", command, err)
	}
	if msg := errorMessage(env.Error); msg != "" {
		return &APIError{Command: command, Message: msg}
	}

	if out != nil && len(env.Result) > 0 && string(env.Result) != "null" {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", command, err)
		}
	}
	return nil
}

// errorMessage extracts a readable message from the envelope error field,
// which the core sends either as a string or as an object.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// do executes an HTTP request, attaching the API token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("X-Bitmask-Auth", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", req.URL.Path)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
