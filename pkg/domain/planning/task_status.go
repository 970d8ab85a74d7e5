package planning

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Task lifecycle events.
const (
	EventAssign   = "assign"
	EventStart    = "start"
	EventComplete = "complete"
	EventBlock    = "block"
	EventUnblock  = "unblock"
	EventRelease  = "release"
)

// validTransitions maps currentStatus -> event -> targetStatus.
var validTransitions = map[TaskStatus]map[string]TaskStatus{
	StatusPlanned: {
		EventAssign: StatusAssigned,
		EventBlock:  StatusBlocked,
	},
	StatusAssigned: {
		EventStart:   StatusInProgress,
		EventRelease: StatusPlanned,
		EventBlock:   StatusBlocked,
	},
	StatusInProgress: {
		EventComplete: StatusCompleted,
		EventBlock:    StatusBlocked,
	},
	StatusBlocked: {
		EventUnblock: StatusPlanned,
	},
	StatusCompleted: {},
}

// AllTaskStatuses returns all valid task statuses.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		StatusPlanned,
		StatusAssigned,
		StatusInProgress,
		StatusCompleted,
		StatusBlocked,
	}
}

// IsValid returns true if the status is a valid task status.
func (s TaskStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s TaskStatus) String() string {
	return string(s)
}

// CanTransitionWith returns true if the event can fire from this status.
func (s TaskStatus) CanTransitionWith(event string) bool {
	_, ok := validTransitions[s][event]
	return ok
}

// TransitionWith returns the target status for an event, or an error if not allowed.
func (s TaskStatus) TransitionWith(event string) (TaskStatus, error) {
	transitions, ok := validTransitions[s]
	if !ok {
		return s, fmt.Errorf("no transitions defined for status: %s", s)
	}
	target, ok := transitions[event]
	if !ok {
		return s, fmt.Errorf("event '%s' not allowed from status '%s'", event, s)
	}
	return target, nil
}

// ValidEvents returns the events that can fire from this status, sorted.
func (s TaskStatus) ValidEvents() []string {
	var events []string
	for event := range validTransitions[s] {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// IsFinal returns true for terminal statuses.
func (s TaskStatus) IsFinal() bool {
	return s == StatusCompleted
}

// IsAssignable reports whether the optimizer may place this task.
func (s TaskStatus) IsAssignable() bool {
	return s == StatusPlanned
}

func (s TaskStatus) DisplayName() string {
	switch s {
	case StatusPlanned:
		return "Planned"
	case StatusAssigned:
		return "Assigned"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusBlocked:
		return "Blocked"
	default:
		return string(s)
	}
}

// ParseTaskStatus parses a string into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid task status: %s", s)
	}
	return status, nil
}

func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler. An empty value decodes to planned.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = StatusPlanned
		return nil
	}
	status, err := ParseTaskStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
