package bootstrap

// State is a step of the bootstrap state machine.
//
//	Start → FetchingProviders → FetchingAuthStatus → MainPanel
//	                                               → ProbingVPN → MainPanel | GreeterPanel
//
// ErrorPanel is reachable from either fetching state, and from ProbingVPN
// only through a recovered panic.
type State int

const (
	StateStart State = iota
	StateFetchingProviders
	StateFetchingAuthStatus
	StateProbingVPN
	StateMainPanel
	StateGreeterPanel
	StateErrorPanel
)

var stateNames = map[State]string{
	StateStart:              "start",
	StateFetchingProviders:  "fetching_providers",
	StateFetchingAuthStatus: "fetching_auth_status",
	StateProbingVPN:         "probing_vpn",
	StateMainPanel:          "main_panel",
	StateGreeterPanel:       "greeter_panel",
	StateErrorPanel:         "error_panel",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateMainPanel || s == StateGreeterPanel || s == StateErrorPanel
}

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateStart:              {StateFetchingProviders},
	StateFetchingProviders:  {StateFetchingAuthStatus, StateErrorPanel},
	StateFetchingAuthStatus: {StateMainPanel, StateProbingVPN, StateErrorPanel},
	StateProbingVPN:         {StateMainPanel, StateGreeterPanel, StateErrorPanel},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
