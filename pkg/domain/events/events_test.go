package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateHash_Deterministic(t *testing.T) {
	e := &SessionCreated{
		BaseEvent: NewBase(EventTypeSessionCreated, "s1", "engine", time.Unix(0, 0)),
		Objective: "Ship login page",
		Strategy:  "iterative",
	}
	a := e.Envelope()
	b := e.Envelope()
	if a.CalculateHash() != b.CalculateHash() {
		t.Fatal("hash differs for identical envelopes")
	}

	b.Metadata["objective"] = "Ship signup page"
	if a.CalculateHash() == b.CalculateHash() {
		t.Fatal("hash ignores metadata")
	}

	c := e.Envelope()
	c.PrevHash = "abc"
	if a.CalculateHash() == c.CalculateHash() {
		t.Fatal("hash ignores the previous link")
	}
}

func TestEnvelope_CarriesFields(t *testing.T) {
	e := &TaskStatusChanged{
		BaseEvent: NewBase(EventTypeTaskStatusChanged, "s1", "engine", time.Now()),
		TaskID:    "t1",
		From:      "assigned",
		To:        "in_progress",
	}
	env := e.Envelope()
	if env.Type != EventTypeTaskStatusChanged || env.SessionID != "s1" {
		t.Errorf("envelope header = %+v", env)
	}
	if env.Metadata["task_id"] != "t1" || env.Metadata["to"] != "in_progress" {
		t.Errorf("metadata = %v", env.Metadata)
	}
	if e.Metadata != nil {
		t.Error("Envelope must not mutate the event")
	}
}

type failingAudit struct{ appended int }

func (f *failingAudit) Append(*BaseEvent) error                    { f.appended++; return errors.New("disk full") }
func (f *failingAudit) LoadAll() ([]*BaseEvent, error)             { return nil, nil }
func (f *failingAudit) LoadBySession(string) ([]*BaseEvent, error) { return nil, nil }
func (f *failingAudit) VerifyIntegrity() error                     { return nil }

func TestAuditHandler_SwallowsFailures(t *testing.T) {
	audit := &failingAudit{}
	h := NewAuditHandler(audit, nil)

	err := h.Handle(context.Background(), &SessionArchived{
		BaseEvent: NewBase(EventTypeSessionArchived, "s1", "engine", time.Now()),
		State:     "completed",
	})
	if err != nil {
		t.Fatalf("Handle returned %v, want nil", err)
	}
	if audit.appended != 1 {
		t.Errorf("appended = %d, want 1", audit.appended)
	}
}

func TestLoggingHandler_Registration(t *testing.T) {
	reg := NewLoggingHandler(nil).Registration()
	if len(reg.EventTypes) != 1 || reg.EventTypes[0] != Wildcard {
		t.Errorf("EventTypes = %v, want wildcard", reg.EventTypes)
	}
}
