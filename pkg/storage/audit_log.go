package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
)

// FileAuditLog implements events.AuditLog as a hash-chained JSON Lines file.
type FileAuditLog struct {
	mu       sync.RWMutex
	path     string
	lastHash string
}

var _ events.AuditLog = (*FileAuditLog)(nil)

// NewFileAuditLog opens the log at path. The parent directory is created on
// first write; an existing log is resumed at its last hash.
func NewFileAuditLog(path string) (*FileAuditLog, error) {
	log := &FileAuditLog{path: path}
	entries, err := log.load()
	if err != nil {
		return nil, err
	}
	if n := len(entries); n > 0 {
		log.lastHash = entries[n-1].Hash
	}
	return log, nil
}

func (l *FileAuditLog) Path() string { return l.path }

// Append chains event to the previous entry and writes it. The event's
// PrevHash and Hash are overwritten.
func (l *FileAuditLog) Append(event *events.BaseEvent) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	event.PrevHash = l.lastHash
	event.Hash = event.CalculateHash()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close audit log: %w", cerr)
		}
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}

	l.lastHash = event.Hash
	return nil
}

// LoadAll returns every entry in append order.
func (l *FileAuditLog) LoadAll() ([]*events.BaseEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.load()
}

func (l *FileAuditLog) LoadBySession(sessionID string) ([]*events.BaseEvent, error) {
	all, err := l.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []*events.BaseEvent
	for _, e := range all {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Violations walks the chain and describes every broken link.
func (l *FileAuditLog) Violations() ([]string, error) {
	entries, err := l.LoadAll()
	if err != nil {
		return nil, err
	}

	var violations []string
	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev {
			violations = append(violations, fmt.Sprintf("entry %d (%s): prev hash mismatch", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("entry %d (%s): hash mismatch, possible tampering", i, e.ID))
		}
		prev = e.Hash
	}
	return violations, nil
}

// VerifyIntegrity returns ErrChainBroken describing the first broken link.
func (l *FileAuditLog) VerifyIntegrity() error {
	violations, err := l.Violations()
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", events.ErrChainBroken, violations[0])
	}
	return nil
}

func (l *FileAuditLog) load() ([]*events.BaseEvent, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var out []*events.BaseEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e events.BaseEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal audit entry on line %d: %w", line, err)
		}
		out = append(out, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return out, nil
}
