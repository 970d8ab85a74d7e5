package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
)

// timeLayout keeps a fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// candidateCap bounds how many full-text matches are ranked per search.
const candidateCap = 500

// SQLiteHistoryStore persists history records in SQLite with an FTS5 index
// over summaries and payloads.
type SQLiteHistoryStore struct {
	db          *sql.DB
	path        string
	retryConfig retry.Config
	newID       func() string
}

var _ history.Store = (*SQLiteHistoryStore)(nil)

// NewSQLiteHistoryStore opens (creating when needed) the database at path
// and applies migrations.
func NewSQLiteHistoryStore(path string) (*SQLiteHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteHistoryStore{
		db:   db,
		path: path,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		newID: uuid.NewString,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteHistoryStore) Path() string {
	return s.path
}

// Append stores r. Writes are retried briefly when the database is busy.
func (s *SQLiteHistoryStore) Append(ctx context.Context, r history.Record) error {
	a, err := history.Encode(r)
	if err != nil {
		return err
	}
	a.ID = s.newID()

	retryer := retry.New[int64](s.retryConfig)
	_, err = retryer.Do(ctx, func(ctx context.Context) (int64, error) {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO artifacts (id, kind, summary, payload, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			a.ID, string(a.Kind), a.Summary, string(a.Payload), a.RecordedAt.UTC().Format(timeLayout))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", a.Kind, err)
	}
	return nil
}

// Search returns artifacts ranked by relevance to q.Text, most recent first
// among equals. An empty query lists the most recent artifacts.
func (s *SQLiteHistoryStore) Search(ctx context.Context, q history.Query) ([]history.Artifact, error) {
	terms := history.Terms(q.Text)

	var (
		candidates []history.Artifact
		err        error
	)
	if len(terms) == 0 {
		candidates, err = s.recent(ctx, q.Kind, q.EffectiveLimit())
	} else {
		candidates, err = s.matching(ctx, q.Kind, terms)
	}
	if err != nil {
		return nil, err
	}
	return rankArtifacts(candidates, terms, q), nil
}

func (s *SQLiteHistoryStore) recent(ctx context.Context, kind history.Kind, limit int) ([]history.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, summary, payload, recorded_at
		FROM artifacts
		WHERE (? = '' OR kind = ?)
		ORDER BY recorded_at DESC
		LIMIT ?
	`, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanArtifacts(rows)
}

// matching finds artifacts containing any of terms. Terms are alphanumeric,
// so quoting them is enough to keep FTS5 from reading them as operators.
func (s *SQLiteHistoryStore) matching(ctx context.Context, kind history.Kind, terms []string) ([]history.Artifact, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.kind, a.summary, a.payload, a.recorded_at
		FROM artifacts a
		JOIN artifacts_fts fts ON a.rowid = fts.rowid
		WHERE artifacts_fts MATCH ? AND (? = '' OR a.kind = ?)
		ORDER BY rank
		LIMIT ?
	`, strings.Join(quoted, " OR "), string(kind), string(kind), candidateCap)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows
	return scanArtifacts(rows)
}

func scanArtifacts(rows *sql.Rows) ([]history.Artifact, error) {
	var out []history.Artifact
	for rows.Next() {
		var a history.Artifact
		var kind, payload, stamp string
		if err := rows.Scan(&a.ID, &kind, &a.Summary, &payload, &stamp); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		at, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("parse artifact %s time: %w", a.ID, err)
		}
		a.Kind = history.Kind(kind)
		a.Payload = []byte(payload)
		a.RecordedAt = at
		out = append(out, a)
	}
	return out, rows.Err()
}

// MemoryHistoryStore is an in-process history store with the same ranking
// as the SQLite store.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	artifacts []history.Artifact
	newID     func() string
}

var _ history.Store = (*MemoryHistoryStore)(nil)

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{newID: uuid.NewString}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, r history.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := history.Encode(r)
	if err != nil {
		return err
	}
	a.ID = s.newID()

	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryHistoryStore) Search(ctx context.Context, q history.Query) ([]history.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := history.Terms(q.Text)

	s.mu.RLock()
	candidates := make([]history.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		if q.Kind == "" || a.Kind == q.Kind {
			candidates = append(candidates, a)
		}
	}
	s.mu.RUnlock()

	return rankArtifacts(candidates, terms, q), nil
}

func (s *MemoryHistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
