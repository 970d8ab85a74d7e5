package planning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel grades both a strategy's risk and a context's tolerance for it.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

func (r RiskLevel) IsValid() bool {
	_, ok := riskOrder[r]
	return ok
}

func (r RiskLevel) String() string {
	return string(r)
}

// Order returns 1..3 for valid levels and 0 otherwise.
func (r RiskLevel) Order() int {
	return riskOrder[r]
}

// Exceeds reports whether r is strictly riskier than other.
func (r RiskLevel) Exceeds(other RiskLevel) bool {
	return r.Order() > other.Order()
}

// ParseRiskLevel parses a risk level; matching is case-insensitive.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", fmt.Errorf("invalid risk level: %s", s)
	}
	return level, nil
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON implements json.Unmarshaler. An empty value decodes to medium.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*r = RiskMedium
		return nil
	}
	level, err := ParseRiskLevel(str)
	if err != nil {
		return err
	}
	*r = level
	return nil
}
