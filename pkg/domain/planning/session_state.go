package planning

import "fmt"

// SessionState is the lifecycle position of a planning session.
type SessionState string

const (
	SessionCreated    SessionState = "created"
	SessionPopulated  SessionState = "populated"
	SessionAssigned   SessionState = "assigned"
	SessionMonitored  SessionState = "monitored"
	SessionCompleted  SessionState = "completed"
	SessionSuperseded SessionState = "superseded"
)

var sessionStateOrder = map[SessionState]int{
	SessionCreated:    1,
	SessionPopulated:  2,
	SessionAssigned:   3,
	SessionMonitored:  4,
	SessionCompleted:  5,
	SessionSuperseded: 5,
}

func (s SessionState) IsValid() bool {
	_, ok := sessionStateOrder[s]
	return ok
}

func (s SessionState) String() string {
	return string(s)
}

// IsArchived reports whether the session has left the active lifecycle.
func (s SessionState) IsArchived() bool {
	return s == SessionCompleted || s == SessionSuperseded
}

// Advance returns the state after an operation that would move the session to
// target. Active states never move backwards, so decomposing more tasks into a
// monitored session keeps it monitored.
func (s SessionState) Advance(target SessionState) (SessionState, error) {
	if s.IsArchived() {
		return s, fmt.Errorf("%w: session is %s", ErrSessionArchived, s)
	}
	if !target.IsValid() {
		return s, fmt.Errorf("invalid session state: %s", target)
	}
	if target.IsArchived() || sessionStateOrder[target] > sessionStateOrder[s] {
		return target, nil
	}
	return s, nil
}
