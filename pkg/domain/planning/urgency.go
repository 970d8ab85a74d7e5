package planning

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUrgency indicates an urgency outside the known levels.
var ErrInvalidUrgency = errors.New("invalid urgency")

// Urgency qualifies a replan request. It is recorded and reported only; no
// planning decision depends on it.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// Tag is the session tag recording this urgency.
func (u Urgency) Tag() string {
	return "urgency:" + string(u)
}

// ParseUrgency is case-insensitive; an empty string means medium.
func ParseUrgency(s string) (Urgency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UrgencyMedium, nil
	}
	u := Urgency(s)
	if !u.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUrgency, s)
	}
	return u, nil
}

// ReplannedFromTag links a session to the one it superseded.
func ReplannedFromTag(sessionID string) string {
	return "replanned-from:" + sessionID
}
