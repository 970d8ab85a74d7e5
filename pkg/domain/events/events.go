// Package events defines the domain events emitted by planning sessions and
// the dispatcher that fans them out to handlers.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
	// Envelope returns the event flattened into an auditable record.
	Envelope() *BaseEvent
}

// BaseEvent carries the fields shared by every event. It is also the record
// persisted to the audit log, where PrevHash and Hash chain entries together.
type BaseEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PrevHash  string         `json:"prev_hash,omitempty"`
	Hash      string         `json:"hash,omitempty"`
}

// NewBase stamps a new event of the given type for a session.
func NewBase(eventType, sessionID, actor string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: at.UTC(),
		Actor:     actor,
	}
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) AggregateID() string   { return e.SessionID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func (e BaseEvent) Envelope() *BaseEvent {
	c := e
	return &c
}

// CalculateHash generates a deterministic SHA256 hash of the event.
func (e *BaseEvent) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.SessionID))
	h.Write([]byte(e.Actor))
	h.Write([]byte(canonicalJSON(e.Metadata)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON renders metadata with sorted keys so hashes are stable.
func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]byte, 0, 256)
	out = append(out, '{')
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(m[k])
		out = append(out, kj...)
		out = append(out, ':')
		out = append(out, vj...)
	}
	out = append(out, '}')
	return string(out)
}

func (e BaseEvent) with(meta map[string]any) *BaseEvent {
	c := e
	c.Metadata = meta
	return &c
}

// Event types.
const (
	EventTypeSessionCreated    = "session.created"
	EventTypeTasksDecomposed   = "session.tasks_decomposed"
	EventTypeTasksAssigned     = "session.tasks_assigned"
	EventTypeTaskStatusChanged = "task.status_changed"
	EventTypeSessionReplanned  = "session.replanned"
	EventTypeSessionArchived   = "session.archived"
)

// SessionCreated is emitted once a validated context becomes a session.
type SessionCreated struct {
	BaseEvent
	Objective string `json:"objective"`
	Strategy  string `json:"strategy,omitempty"`
}

func (e *SessionCreated) Envelope() *BaseEvent {
	return e.with(map[string]any{"objective": e.Objective, "strategy": e.Strategy})
}

// TasksDecomposed is emitted after a decomposition is merged into a session.
type TasksDecomposed struct {
	BaseEvent
	Added   int    `json:"added"`
	Dropped int    `json:"dropped"`
	Source  string `json:"source"`
}

func (e *TasksDecomposed) Envelope() *BaseEvent {
	return e.with(map[string]any{"added": e.Added, "dropped": e.Dropped, "source": e.Source})
}

// TasksAssigned is emitted after an assignment pass.
type TasksAssigned struct {
	BaseEvent
	Mapping    map[string][]string `json:"mapping"`
	Unassigned []string            `json:"unassigned,omitempty"`
}

func (e *TasksAssigned) Envelope() *BaseEvent {
	return e.with(map[string]any{"mapping": e.Mapping, "unassigned": e.Unassigned})
}

// TaskStatusChanged is emitted for every accepted lifecycle event on a task.
type TaskStatusChanged struct {
	BaseEvent
	TaskID string `json:"task_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Worker string `json:"worker,omitempty"`
}

func (e *TaskStatusChanged) Envelope() *BaseEvent {
	return e.with(map[string]any{"task_id": e.TaskID, "from": e.From, "to": e.To, "worker": e.Worker})
}

// SessionReplanned is emitted on the new session produced by a replan.
type SessionReplanned struct {
	BaseEvent
	FromSessionID string `json:"from_session_id"`
	Change        string `json:"change"`
	Urgency       string `json:"urgency"`
}

func (e *SessionReplanned) Envelope() *BaseEvent {
	return e.with(map[string]any{"from_session_id": e.FromSessionID, "change": e.Change, "urgency": e.Urgency})
}

// SessionArchived is emitted when a session moves to history.
type SessionArchived struct {
	BaseEvent
	State string `json:"state"`
}

func (e *SessionArchived) Envelope() *BaseEvent {
	return e.with(map[string]any{"state": e.State})
}
