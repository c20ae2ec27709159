package bootstrap

import "github.com/leap-se/bitmask-client/internal/account"

// Panel names a top-level view of the application.
type Panel string

const (
	PanelMain    Panel = "main"
	PanelGreeter Panel = "greeter"
)

// Properties parameterize a panel. InitialAccount is nil when not set.
type Properties struct {
	InitialAccount *account.Account
	ShowLogin      bool
}

// Presenter is the presentation boundary: it switches panels and shows
// errors. It never feeds data back into the bootstrap.
type Presenter interface {
	Show(panel Panel, props Properties)
	ShowError(err error)
}
