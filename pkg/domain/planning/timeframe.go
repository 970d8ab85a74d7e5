package planning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeframePattern matches "36h", "3d", "2w", "2 weeks", "10 days".
var timeframePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(h|hours?|d|days?|w|weeks?)$`)

// DefaultTimeframe is used when a planning context carries no timeframe.
const DefaultTimeframe = 14 * 24 * time.Hour

// Timeframe is a calendar window for a planning session.
type Timeframe struct {
	raw      string
	duration time.Duration
}

// ParseTimeframe parses a timeframe string. Days and weeks are calendar units.
// An empty string yields the zero Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Timeframe{}, nil
	}

	matches := timeframePattern.FindStringSubmatch(s)
	if matches == nil {
		return Timeframe{}, fmt.Errorf("%w: %q (expected forms like 36h, 3d, 2w)", ErrInvalidTimeframe, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return Timeframe{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, matches[1])
	}

	var unit time.Duration
	switch matches[2][0] {
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	}

	return Timeframe{raw: s, duration: time.Duration(value * float64(unit))}, nil
}

func (t Timeframe) String() string {
	return t.raw
}

func (t Timeframe) Duration() time.Duration {
	return t.duration
}

// DurationOr returns the parsed duration, or fallback when the timeframe is empty.
func (t Timeframe) DurationOr(fallback time.Duration) time.Duration {
	if t.duration <= 0 {
		return fallback
	}
	return t.duration
}

func (t Timeframe) IsZero() bool {
	return t.raw == ""
}
