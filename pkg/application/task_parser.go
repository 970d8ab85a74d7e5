package application

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

const taskSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "properties": {
      "id": { "type": "string" },
      "title": { "type": "string" },
      "description": { "type": "string" },
      "priority": { "type": "string" },
      "complexity": { "type": "string" },
      "estimated_hours": { "type": ["number", "string"] },
      "dependencies": { "type": "array", "items": { "type": "string" } },
      "required_skills": { "type": "array", "items": { "type": "string" } }
    },
    "anyOf": [
      { "required": ["title"] },
      { "required": ["description"] }
    ]
  }
}`

var taskSchemaLoader = gojsonschema.NewStringLoader(taskSchemaJSON)

// FallbackTaskCap bounds the number of tasks the line heuristic produces.
const FallbackTaskCap = 5

// minFallbackLineLength is the shortest line the heuristic treats as a task.
const minFallbackLineLength = 10

// ParseFailure explains why a response could not be read as a task list.
type ParseFailure struct {
	Reason string
	// SchemaErrors lists schema violations when the payload was JSON.
	SchemaErrors []string
}

func (f *ParseFailure) Error() string {
	if len(f.SchemaErrors) == 0 {
		return "unstructured response: " + f.Reason
	}
	return fmt.Sprintf("unstructured response: %s (%s)", f.Reason, strings.Join(f.SchemaErrors, "; "))
}

// draftTask is a parsed task before IDs are assigned. Ref is the identifier
// the model used, which dependencies may point at.
type draftTask struct {
	Ref          string
	Task         planning.Task
	Dependencies []string
}

// parseStructuredTasks reads the response as a JSON task list. It returns
// either drafts or a failure, never both.
func parseStructuredTasks(text string) ([]draftTask, *ParseFailure) {
	payload := extractJSONPayload(text)
	if payload == "" {
		return nil, &ParseFailure{Reason: "empty response"}
	}

	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ParseFailure{Reason: "no JSON payload found"}
	}

	items, ok := unwrapTaskList(raw)
	if !ok {
		return nil, &ParseFailure{Reason: "JSON payload is not a task list"}
	}

	normalized, _ := json.Marshal(items)
	result, err := gojsonschema.Validate(taskSchemaLoader, gojsonschema.NewBytesLoader(normalized))
	if err != nil {
		return nil, &ParseFailure{Reason: "schema check failed: " + err.Error()}
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &ParseFailure{Reason: "task list does not match schema", SchemaErrors: issues}
	}

	drafts := make([]draftTask, 0, len(items))
	for i, item := range items {
		drafts = append(drafts, normalizeTaskMap(item.(map[string]any), i))
	}
	return drafts, nil
}

// unwrapTaskList accepts a bare array, a wrapper object keyed by tasks,
// task or data, or a single task object.
func unwrapTaskList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, len(v) > 0
	case map[string]any:
		for _, key := range []string{"tasks", "task", "data"} {
			if list, ok := v[key].([]any); ok && len(list) > 0 {
				return list, true
			}
		}
		if hasAnyKey(v, "title", "description") {
			return []any{v}, true
		}
	}
	return nil, false
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9-]+`)

func normalizeTaskMap(raw map[string]any, index int) draftTask {
	ref := getString(raw, "id", "task_id", "task-id", "taskId")
	title := getString(raw, "title", "name")
	description := getString(raw, "description", "details")

	if title == "" && description != "" {
		title = summarizeText(description)
	}
	if ref == "" && title != "" {
		ref = "task-" + slugify(title)
	}
	if ref == "" {
		ref = fmt.Sprintf("task-%d", index+1)
	}

	t := planning.Task{
		Title:          title,
		Description:    description,
		EstimatedHours: getNumber(raw, "estimated_hours", "estimate", "hours", "effort"),
		RequiredSkills: getStrings(raw, "required_skills", "skills"),
		Status:         planning.StatusPlanned,
	}
	if p, err := planning.ParseTaskPriority(getString(raw, "priority")); err == nil {
		t.Priority = p
	}
	if c, err := planning.ParseTaskComplexity(getString(raw, "complexity")); err == nil {
		t.Complexity = c
	}
	t.Normalize()

	return draftTask{
		Ref:          ref,
		Task:         t,
		Dependencies: getStrings(raw, "dependencies", "depends_on", "dependsOn"),
	}
}

var (
	listMarker  = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)]|\[[ xX]\])\s+`)
	headingMark = regexp.MustCompile(`^\s*#+\s*`)
)

// fallbackTasks treats each non-trivial line of text as a task title. Code
// fences, stray JSON, headings ending in a colon and short lines are
// trivial. At most
// FallbackTaskCap drafts are returned, each moderate, medium priority and
// the default effort.
func fallbackTasks(text string) []draftTask {
	var drafts []draftTask
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		if len(drafts) == FallbackTaskCap {
			break
		}
		title := strings.TrimSpace(line)
		if strings.HasPrefix(title, "```") {
			continue
		}
		title = listMarker.ReplaceAllString(title, "")
		title = headingMark.ReplaceAllString(title, "")
		if strings.ContainsAny(firstRune(title), `{}[]"`) {
			continue
		}
		title = strings.Trim(title, "*_` ")
		if len(title) < minFallbackLineLength || strings.HasSuffix(title, ":") {
			continue
		}
		title = summarizeText(title)
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true

		drafts = append(drafts, draftTask{
			Ref: fmt.Sprintf("fallback-%d", len(drafts)+1),
			Task: planning.Task{
				Title:          title,
				Priority:       planning.PriorityMedium,
				Complexity:     planning.ComplexityModerate,
				EstimatedHours: planning.DefaultEstimatedHours,
				Status:         planning.StatusPlanned,
			},
		})
	}
	return drafts
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func getString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if str, ok := value.(string); ok {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func getStrings(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			return out
		case string:
			var out []string
			for _, part := range strings.Split(v, ",") {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	return nil
}

// getNumber reads a numeric field, accepting strings such as "6" or "6h".
func getNumber(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return v
		case string:
			s := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(v)), "h")
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

const maxSummaryRunes = 80

// summarizeText keeps the first sentence, or the first maxSummaryRunes runes.
func summarizeText(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if idx := strings.Index(trimmed, ". "); idx > 0 && utf8.RuneCountInString(trimmed[:idx]) < maxSummaryRunes {
		return strings.TrimSpace(trimmed[:idx])
	}
	if utf8.RuneCountInString(trimmed) > maxSummaryRunes {
		return strings.TrimSpace(string([]rune(trimmed)[:maxSummaryRunes])) + "…"
	}
	return strings.TrimSuffix(trimmed, ".")
}

func slugify(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = slugCleaner.ReplaceAllString(normalized, "-")
	return strings.Trim(normalized, "-")
}

func hasAnyKey(raw map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	return false
}

// extractJSONPayload strips code fences and surrounding prose, returning the
// outermost JSON array or object in text.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return ""
	}

	start := firstIndex(clean, "[", "{")
	if start == -1 {
		return clean
	}
	end := lastIndex(clean, "]", "}")
	if end <= start {
		return clean
	}
	return strings.TrimSpace(clean[start : end+1])
}

func firstIndex(s string, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := strings.Index(s, sub); i != -1 && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}

func lastIndex(s string, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := strings.LastIndex(s, sub); i > best {
			best = i
		}
	}
	return best
}
