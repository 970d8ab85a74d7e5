package planning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// priorityWeights doubles as the ordering of priorities (higher = more urgent).
var priorityWeights = map[TaskPriority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// AllTaskPriorities returns all valid task priorities, most urgent first.
func AllTaskPriorities() []TaskPriority {
	return []TaskPriority{
		PriorityCritical,
		PriorityHigh,
		PriorityMedium,
		PriorityLow,
	}
}

// IsValid returns true if the priority is a valid task priority.
func (p TaskPriority) IsValid() bool {
	_, ok := priorityWeights[p]
	return ok
}

func (p TaskPriority) String() string {
	return string(p)
}

// Weight returns the numeric weight of the priority, 0 when invalid.
func (p TaskPriority) Weight() int {
	return priorityWeights[p]
}

// Compare returns -1 if p < other, 0 if equal, 1 if p > other.
func (p TaskPriority) Compare(other TaskPriority) int {
	switch a, b := p.Weight(), other.Weight(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this priority outranks the other.
func (p TaskPriority) IsHigherThan(other TaskPriority) bool {
	return p.Compare(other) > 0
}

// DisplayName returns a human-readable display name for the priority.
func (p TaskPriority) DisplayName() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return string(p)
	}
}

// ParseTaskPriority parses a string into a TaskPriority. Matching is case-insensitive.
func ParseTaskPriority(s string) (TaskPriority, error) {
	priority := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if !priority.IsValid() {
		return "", fmt.Errorf("invalid task priority: %s", s)
	}
	return priority, nil
}

// DefaultTaskPriority returns the priority used when none is supplied.
func DefaultTaskPriority() TaskPriority {
	return PriorityMedium
}

// MarshalJSON implements json.Marshaler.
func (p TaskPriority) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON implements json.Unmarshaler. An empty value decodes to medium.
func (p *TaskPriority) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*p = DefaultTaskPriority()
		return nil
	}
	priority, err := ParseTaskPriority(str)
	if err != nil {
		return err
	}
	*p = priority
	return nil
}
