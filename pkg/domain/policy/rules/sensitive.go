package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

type secretPattern struct {
	re          *regexp.Regexp
	description string
}

var secretPatterns = []secretPattern{
	{regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|passwd|token)\s*[:=]\s*["']?[A-Za-z0-9_\-./+]{8,}`), "inline credential"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`), "private key block"},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "AWS access key"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`), "API secret key"},
}

// sensitiveFiles are file names that should never be committed.
var sensitiveFiles = []struct {
	pattern     string
	description string
}{
	{".env", "environment file"},
	{"credentials.json", "credential file"},
	{".sqlite3", "database file"},
	{"id_rsa", "private SSH key"},
}

var allowedFiles = []string{".env.example", ".env.sample"}

// SensitiveDataRule rejects embedded secrets and warns when content proposes
// committing files that usually hold them.
type SensitiveDataRule struct{}

func (SensitiveDataRule) ID() string { return "sensitive-data" }

func (r SensitiveDataRule) Check(content, _ string) []policy.Violation {
	var out []policy.Violation
	for _, p := range secretPatterns {
		if p.re.MatchString(content) {
			out = append(out, policy.Violation{
				RuleID:  r.ID(),
				Level:   policy.ViolationError,
				Message: fmt.Sprintf("content contains a %s", p.description),
			})
		}
	}

	lower := strings.ToLower(content)
	for _, a := range allowedFiles {
		lower = strings.ReplaceAll(lower, a, "")
	}
	if strings.Contains(lower, "commit") || strings.Contains(lower, "push") {
		for _, f := range sensitiveFiles {
			if strings.Contains(lower, f.pattern) {
				out = append(out, policy.Violation{
					RuleID:  r.ID(),
					Level:   policy.ViolationWarning,
					Message: fmt.Sprintf("content proposes committing a %s (%s)", f.description, f.pattern),
				})
			}
		}
	}
	return out
}

// Default returns the standard rule set with the given content limit.
func Default(maxLength int) []policy.Rule {
	return []policy.Rule{
		NonEmptyRule{},
		MaxLengthRule{Limit: maxLength},
		ActionableTitleRule{},
		SensitiveDataRule{},
	}
}
