// Package bitmask is the Go SDK for the bitmask core local HTTP API.
//
// The core runs on the user's machine and owns provider configuration,
// user sessions and the VPN service. Every call is a POST to
// /API/<service>/<object>/<verb> whose body is the JSON array of positional
// arguments; the reply is an envelope carrying either a result or an error.
//
// # Connecting
//
// The core writes a per-session API token to disk on startup. Load it in
// one call:
//
//	c, err := bitmask.New("http://localhost:7070",
//	    bitmask.WithTokenFile(os.ExpandEnv("$HOME/.config/leap/authtoken")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Sessions
//
//	res, err := c.Authenticate(ctx, "alice@riseup.net", password, true)
//	fmt.Println(res.UUID) // empty when the core did not open a session
//
//	users, err := c.ListUsers(ctx) // accounts the core holds a session for
//
// # Providers
//
// The provider directory can be cached in-process. A refresh bypasses the
// cache and refills it:
//
//	c, _ := bitmask.New(apiURL, bitmask.WithDirectoryCacheTTL(5*time.Minute))
//	domains, err := c.ListProviders(ctx, false)
//
// # VPN
//
//	status, err := c.CheckVPN(ctx, "riseup.net")
//	if err == nil && status.Ready() {
//	    // provider can bring the tunnel up without further setup
//	}
package bitmask
