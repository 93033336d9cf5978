package session

import "github.com/concerttix/console/internal/domain"

// State is the lifecycle position of a session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Settled reports whether startup rehydration has finished.
func (s State) Settled() bool {
	return s == StateAuthenticated || s == StateAnonymous
}

var transitions = map[State][]State{
	StateUninitialized: {StateLoading},
	StateLoading:       {StateAuthenticated, StateAnonymous},
	StateAuthenticated: {StateAnonymous},
	StateAnonymous:     {StateAuthenticated},
}

// CanTransition reports whether from → to is a legal session transition.
// Authenticated never moves directly to Authenticated: the old user is
// cleared first.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	User    *domain.User
	Token   string
	Loading bool
	State   State
}

// IsAuthenticated reports whether a user is signed in.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// IsAdmin reports whether the signed-in user is an admin.
func (s Snapshot) IsAdmin() bool {
	return s.User.IsAdmin()
}
