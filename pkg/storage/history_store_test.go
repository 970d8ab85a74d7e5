package storage

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
)

func historyFixtures() []history.Record {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []history.Record{
		history.DecompositionPattern{
			Objective:  "Ship login page",
			TaskCount:  2,
			TaskTitles: []string{"Implement form", "Review security"},
			Source:     "structured",
			At:         base,
		},
		history.DecompositionPattern{
			Objective:  "Ship signup page",
			TaskCount:  1,
			TaskTitles: []string{"Build signup form"},
			Source:     "structured",
			At:         base.Add(time.Hour),
		},
		history.DecompositionPattern{
			Objective:  "Migrate billing database",
			TaskCount:  1,
			TaskTitles: []string{"Export invoices"},
			Source:     "fallback",
			At:         base.Add(2 * time.Hour),
		},
		history.ReplanningRecord{
			Change:        "login vendor delayed",
			Urgency:       "high",
			FromSessionID: "s1",
			ToSessionID:   "s2",
			At:            base.Add(3 * time.Hour),
		},
	}
}

func openStores(t *testing.T) map[string]history.Store {
	t.Helper()
	sqlite, err := NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "history", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteHistoryStore: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]history.Store{
		"sqlite": sqlite,
		"memory": NewMemoryHistoryStore(),
	}
}

func TestHistoryStores_Search(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range historyFixtures() {
				if err := store.Append(ctx, r); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			tests := []struct {
				name        string
				query       history.Query
				wantSummary []string
			}{
				{
					name:  "ranked by relevance then recency",
					query: history.Query{Text: "ship login page", Kind: history.KindDecomposition},
					wantSummary: []string{
						"Ship login page: Implement form; Review security",
						"Ship signup page: Build signup form",
					},
				},
				{
					name:        "kind filter",
					query:       history.Query{Text: "login", Kind: history.KindReplanning},
					wantSummary: []string{"[high] login vendor delayed"},
				},
				{
					name:        "limit",
					query:       history.Query{Text: "ship page", Limit: 1},
					wantSummary: []string{"Ship signup page: Build signup form"},
				},
				{
					name:        "min relevance",
					query:       history.Query{Text: "login page", MinRelevance: 1},
					wantSummary: []string{"Ship login page: Implement form; Review security"},
				},
				{
					name:        "no match",
					query:       history.Query{Text: "kubernetes"},
					wantSummary: nil,
				},
				{
					name:  "empty text lists recent",
					query: history.Query{Kind: history.KindDecomposition, Limit: 2},
					wantSummary: []string{
						"Migrate billing database: Export invoices",
						"Ship signup page: Build signup form",
					},
				},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := store.Search(ctx, tt.query)
					if err != nil {
						t.Fatalf("Search: %v", err)
					}
					if len(got) != len(tt.wantSummary) {
						t.Fatalf("got %d results %v, want %v", len(got), summaries(got), tt.wantSummary)
					}
					for i, a := range got {
						if a.Summary != tt.wantSummary[i] {
							t.Errorf("result %d = %q, want %q", i, a.Summary, tt.wantSummary[i])
						}
						if a.ID == "" || a.Relevance <= 0 {
							t.Errorf("result %d missing id or relevance: %+v", i, a)
						}
					}
				})
			}
		})
	}
}

func TestHistoryStores_DecodeRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := historyFixtures()[0].(history.DecompositionPattern)
			if err := store.Append(ctx, want); err != nil {
				t.Fatalf("Append: %v", err)
			}
			got, err := store.Search(ctx, history.Query{Text: "login"})
			if err != nil || len(got) != 1 {
				t.Fatalf("Search = %v, %v", got, err)
			}
			rec, err := got[0].Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			p, ok := rec.(*history.DecompositionPattern)
			if !ok || p.Objective != want.Objective || len(p.TaskTitles) != 2 || !p.At.Equal(want.At) {
				t.Errorf("decoded = %#v", rec)
			}
		})
	}
}

func TestHistoryStores_LimitIsCapped(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < history.MaxLimit+5; i++ {
				err := store.Append(ctx, history.AssignmentPattern{
					SessionID: "s" + strconv.Itoa(i),
					TaskCount: 1,
					At:        time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
				})
				if err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			got, err := store.Search(ctx, history.Query{Limit: 1000})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != history.MaxLimit {
				t.Errorf("got %d results, want %d", len(got), history.MaxLimit)
			}
		})
	}
}

func TestSQLiteHistoryStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := NewSQLiteHistoryStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Append(context.Background(), historyFixtures()[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteHistoryStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close() //nolint:errcheck // test cleanup
	got, err := second.Search(context.Background(), history.Query{Text: "security review"})
	if err != nil || len(got) != 1 {
		t.Errorf("after reopen: %v, %v", got, err)
	}
}

func summaries(as []history.Artifact) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Summary
	}
	return out
}
