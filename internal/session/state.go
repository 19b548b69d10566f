package session

// State is the lifecycle state of the session.
type State int

const (
	// StateAnonymous means no access token is held.
	StateAnonymous State = iota

	// StateAuthenticating means an authorize redirect was issued and the
	// provider callback is awaited.
	StateAuthenticating

	// StateAuthenticated means an access token is held.
	StateAuthenticated

	// StateRefreshing is the transient state while a refresh grant is in flight.
	StateRefreshing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the session. It never carries token values.
type Snapshot struct {
	State           State
	HasAccessToken  bool
	HasRefreshToken bool
	HasIDToken      bool
	LoginPending    bool
	Issuer          string
	ClientID        string
}
