// Package history defines the records the engine leaves behind for audit and
// learning, and the store contract they are written to and searched from.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindDecomposition Kind = "decomposition_pattern"
	KindAssignment    Kind = "assignment_pattern"
	KindReplanning    Kind = "replanning_record"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindDecomposition, KindAssignment, KindReplanning:
		return true
	default:
		return false
	}
}

// Search limits.
const (
	DefaultLimit = 5
	MaxLimit     = 50
)

var ErrUnknownKind = errors.New("unknown history record kind")

// Record is one of the fixed record variants below.
type Record interface {
	Kind() Kind
	// Summary is the searchable text of the record.
	Summary() string
	RecordedAt() time.Time
}

// DecompositionPattern records a successful decomposition of an objective.
type DecompositionPattern struct {
	Objective  string    `json:"objective"`
	TaskCount  int       `json:"task_count"`
	TaskTitles []string  `json:"task_titles,omitempty"`
	Source     string    `json:"source,omitempty"`
	At         time.Time `json:"at"`
}

func (r DecompositionPattern) Kind() Kind            { return KindDecomposition }
func (r DecompositionPattern) RecordedAt() time.Time { return r.At }

func (r DecompositionPattern) Summary() string {
	if len(r.TaskTitles) == 0 {
		return r.Objective
	}
	return r.Objective + ": " + strings.Join(r.TaskTitles, "; ")
}

// AssignmentPattern records the mapping produced by one assignment pass.
type AssignmentPattern struct {
	SessionID   string              `json:"session_id"`
	TaskCount   int                 `json:"task_count"`
	WorkerCount int                 `json:"worker_count"`
	Mapping     map[string][]string `json:"mapping"`
	At          time.Time           `json:"at"`
}

func (r AssignmentPattern) Kind() Kind            { return KindAssignment }
func (r AssignmentPattern) RecordedAt() time.Time { return r.At }

func (r AssignmentPattern) Summary() string {
	return fmt.Sprintf("session %s: %d tasks across %d workers", r.SessionID, r.TaskCount, r.WorkerCount)
}

// ReplanningRecord links the session a replan superseded to its successor.
type ReplanningRecord struct {
	Change        string    `json:"change"`
	Urgency       string    `json:"urgency"`
	FromSessionID string    `json:"from_session_id"`
	ToSessionID   string    `json:"to_session_id"`
	At            time.Time `json:"at"`
}

func (r ReplanningRecord) Kind() Kind            { return KindReplanning }
func (r ReplanningRecord) RecordedAt() time.Time { return r.At }

func (r ReplanningRecord) Summary() string {
	return fmt.Sprintf("[%s] %s", r.Urgency, r.Change)
}

// Artifact is a stored record as returned by a search.
type Artifact struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
	// Relevance is the store's 0..1 match score for the query.
	Relevance float64 `json:"relevance"`
}

// Encode serializes a record into an artifact without an ID.
func Encode(r Record) (Artifact, error) {
	if !r.Kind().IsValid() {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind())
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	return Artifact{
		Kind:       r.Kind(),
		Summary:    r.Summary(),
		Payload:    payload,
		RecordedAt: r.RecordedAt().UTC(),
	}, nil
}

// Decode restores the typed record held by the artifact.
func (a Artifact) Decode() (Record, error) {
	var r Record
	switch a.Kind {
	case KindDecomposition:
		r = &DecompositionPattern{}
	case KindAssignment:
		r = &AssignmentPattern{}
	case KindReplanning:
		r = &ReplanningRecord{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, a.Kind)
	}
	if err := json.Unmarshal(a.Payload, r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.Kind, err)
	}
	return r, nil
}

// Query selects artifacts by free text, optionally restricted to one kind.
type Query struct {
	Text string
	Kind Kind
	// Limit is clamped to MaxLimit; zero means DefaultLimit.
	Limit int
	// MinRelevance drops results scoring below it.
	MinRelevance float64
}

// EffectiveLimit returns the clamped result cap.
func (q Query) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Store persists records and answers relevance-ranked searches. Callers
// treat it as best effort.
type Store interface {
	Append(ctx context.Context, r Record) error
	Search(ctx context.Context, q Query) ([]Artifact, error)
}
