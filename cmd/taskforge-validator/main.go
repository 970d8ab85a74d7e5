// Command taskforge-validator serves the built-in policy rules as a
// go-plugin binary, for hosts that configure validation.plugin.
package main

import (
	"os"
	"strconv"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy/rules"
	"github.com/felixgeelhaar/taskforge/pkg/plugin"
)

const defaultMaxLength = 2000

func main() {
	maxLength := defaultMaxLength
	if v, err := strconv.Atoi(os.Getenv("TASKFORGE_VALIDATOR_MAX_LENGTH")); err == nil && v > 0 {
		maxLength = v
	}

	rs := policy.NewRuleSet(rules.Default(maxLength)...)
	if v, err := strconv.ParseFloat(os.Getenv("TASKFORGE_VALIDATOR_MIN_SCORE"), 64); err == nil {
		rs.MinScore = v
	}
	plugin.Serve(rs)
}
