package twofactorclient

// State is where a client is in the login flow.
type State int

const (
	StateIdle State = iota
	// Password accepted, no code requested yet.
	StateAwaitingMethod
	// A code was sent and has to be entered.
	StateAwaitingCode
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMethod:
		return "awaiting_method"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

var transitions = map[State][]State{
	StateIdle:           {StateAwaitingMethod, StateAwaitingCode, StateAuthenticated},
	StateAwaitingMethod: {StateAwaitingMethod, StateAwaitingCode, StateAuthenticated, StateIdle},
	StateAwaitingCode:   {StateAwaitingMethod, StateAwaitingCode, StateAuthenticated, StateIdle},
	StateAuthenticated:  {StateIdle},
}

func (s State) canMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// verifying reports whether a second factor is in progress.
func (s State) verifying() bool {
	return s == StateAwaitingMethod || s == StateAwaitingCode
}
