package planning

import (
	"encoding/json"
	"fmt"
	"strings"
)

var complexityWeights = map[TaskComplexity]int{
	ComplexitySimple:   1,
	ComplexityModerate: 2,
	ComplexityComplex:  3,
	ComplexityExpert:   4,
}

// AllTaskComplexities returns all valid complexities, hardest first.
func AllTaskComplexities() []TaskComplexity {
	return []TaskComplexity{
		ComplexityExpert,
		ComplexityComplex,
		ComplexityModerate,
		ComplexitySimple,
	}
}

func (c TaskComplexity) IsValid() bool {
	_, ok := complexityWeights[c]
	return ok
}

func (c TaskComplexity) String() string {
	return string(c)
}

// Weight returns the numeric weight of the complexity, 0 when invalid.
func (c TaskComplexity) Weight() int {
	return complexityWeights[c]
}

func (c TaskComplexity) DisplayName() string {
	if !c.IsValid() {
		return string(c)
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ParseTaskComplexity parses a string into a TaskComplexity. Matching is case-insensitive.
func ParseTaskComplexity(s string) (TaskComplexity, error) {
	c := TaskComplexity(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid task complexity: %s", s)
	}
	return c, nil
}

// DefaultTaskComplexity returns the complexity used when none is supplied.
func DefaultTaskComplexity() TaskComplexity {
	return ComplexityModerate
}

func (c TaskComplexity) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

func (c *TaskComplexity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*c = DefaultTaskComplexity()
		return nil
	}
	parsed, err := ParseTaskComplexity(str)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
