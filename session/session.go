package session

import (
	"github.com/matchday-app/matchday-go/users"
)

// Status is the session state machine position. Exactly one holds at a time;
// the user object is non-nil iff the status is StatusAuthenticated.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"

	// StatusRefreshFailed is the terminal state after refresh exhaustion:
	// tokens are cleared and the user must log in again. Authentication-wise
	// it is equivalent to StatusUnauthenticated; it exists so the UI can
	// distinguish "session expired" from "never logged in".
	StatusRefreshFailed Status = "refreshFailed"
)

// Snapshot is the externally visible session state, delivered to subscribers
// on every transition.
type Snapshot struct {
	Status Status
	User   *users.UserSummary
	Err    string
}

func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// UserID returns the authenticated user's id, or empty when no user is
// present.
func (s Snapshot) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
