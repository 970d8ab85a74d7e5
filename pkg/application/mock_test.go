package application

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

type stubProvider struct {
	mu      sync.Mutex
	text    string
	err     error
	block   bool
	prompts []string
}

func (s *stubProvider) ID() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ai.CompletionResponse{Text: s.text, Model: "stub-1"}, nil
}

func (s *stubProvider) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// stubValidator rejects content containing any of the reject substrings.
type stubValidator struct {
	reject []string
	err    error
	delay  time.Duration
	score  float64
}

func (v *stubValidator) Validate(ctx context.Context, content, purpose string) (policy.Verdict, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return policy.Verdict{}, ctx.Err()
		}
	}
	if v.err != nil {
		return policy.Verdict{}, v.err
	}
	for _, r := range v.reject {
		if strings.Contains(strings.ToLower(content), r) {
			return policy.Verdict{
				Valid:      false,
				Violations: []policy.Violation{{RuleID: "stub", Message: "contains " + r, Level: policy.ViolationError}},
			}, nil
		}
	}
	score := v.score
	if score == 0 {
		score = 90
	}
	return policy.Verdict{Valid: true, Score: score}, nil
}

type memHistory struct {
	mu        sync.Mutex
	records   []history.Record
	found     []history.Artifact
	searchErr error
	appendErr error
}

func (h *memHistory) Append(_ context.Context, r history.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records = append(h.records, r)
	return nil
}

func (h *memHistory) Search(_ context.Context, q history.Query) ([]history.Artifact, error) {
	if h.searchErr != nil {
		return nil, h.searchErr
	}
	return h.found, nil
}

func (h *memHistory) kinds() []history.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Kind, len(h.records))
	for i, r := range h.records {
		out[i] = r.Kind()
	}
	return out
}

var errUnavailable = errors.New("service unavailable")

// sequentialIDs returns an ID generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

const loginPageJSON = `Here is the plan:
` + "```json" + `
[
  {"id": "form", "title": "Implement form", "priority": "high", "complexity": "moderate",
   "estimated_hours": 8, "required_skills": ["coding"]},
  {"id": "security", "title": "Review security", "priority": "critical", "complexity": "complex",
   "estimated_hours": 8, "required_skills": ["analysis"], "dependencies": ["form"]}
]
` + "```"
