package webhook

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDeadLetterStore_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dead.jsonl")
	store := NewDeadLetterStore(path)

	for i, name := range []string{"a", "b"} {
		err := store.Append(DeadLetter{
			Timestamp:   time.Now().UTC(),
			WebhookName: name,
			URL:         "http://example.invalid",
			EventType:   "session.created",
			Payload:     `{"event_type":"session.created"}`,
			Error:       "status 500",
			Attempts:    i + 1,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].WebhookName != "a" || entries[1].Attempts != 2 {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestDeadLetterStore_Missing(t *testing.T) {
	store := NewDeadLetterStore(filepath.Join(t.TempDir(), "none.jsonl"))
	entries, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil, got %v", entries)
	}
}

func TestDeadLetterStore_SkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead.jsonl")
	data := "not json\n{\"webhook_name\":\"ok\"}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := NewDeadLetterStore(path).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 1 || entries[0].WebhookName != "ok" {
		t.Errorf("unexpected entries %+v", entries)
	}
}
