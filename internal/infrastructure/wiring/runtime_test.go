package wiring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/felixgeelhaar/taskforge/internal/infrastructure/config"
	"github.com/felixgeelhaar/taskforge/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

const plannedTasks = `[
  {"id": "form", "title": "Implement form", "priority": "high", "complexity": "moderate",
   "estimated_hours": 8, "required_skills": ["coding"]},
  {"id": "security", "title": "Review security", "priority": "critical", "complexity": "complex",
   "estimated_hours": 8, "required_skills": ["analysis"], "dependencies": ["form"]}
]`

const seedWorkers = `workers:
  - id: w1
    type: coding
    skills: [coding]
    performance: {success_rate: 0.9, quality_score: 0.9}
  - id: w2
    type: analysis
    skills: [analysis]
    performance: {success_rate: 0.9, quality_score: 0.9}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	workers := filepath.Join(dir, "workers.yaml")
	if err := os.WriteFile(workers, []byte(seedWorkers), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Generation.Provider = "mock"
	cfg.Generation.MockResponse = plannedTasks
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.Audit.Path = filepath.Join(dir, "audit.jsonl")
	cfg.Registry.WorkersFile = workers
	return cfg
}

func TestBuild_PlansEndToEnd(t *testing.T) {
	rt, err := Build(testConfig(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Engine.Registry.Len() != 2 {
		t.Fatalf("expected seeded registry, got %d workers", rt.Engine.Registry.Len())
	}
	if _, ok := rt.Validator.(*policy.RuleSet); !ok {
		t.Errorf("expected built-in rule set, got %T", rt.Validator)
	}

	ctx := context.Background()
	res, err := rt.Engine.Plan(ctx, planning.PlanningContext{Objective: "Ship login page"}, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Session.Tasks) != 2 || res.Assignment.AssignedCount() != 2 {
		t.Errorf("session tasks = %d, assigned = %d", len(res.Session.Tasks), res.Assignment.AssignedCount())
	}

	found, err := rt.History.Search(ctx, history.Query{Text: "login"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) == 0 {
		t.Error("expected decomposition and assignment patterns in history")
	}

	entries, err := rt.Audit.LoadBySession(res.Session.ID)
	if err != nil {
		t.Fatalf("LoadBySession: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 audit entries, got %d", len(entries))
	}
	if err := rt.Audit.VerifyIntegrity(); err != nil {
		t.Errorf("audit chain: %v", err)
	}
}

func TestBuild_UnknownProviderFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Provider = "carrier-pigeon"
	cfg.History.Path = ""
	cfg.Audit.Path = ""

	rt, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Provider != nil || rt.History != nil || rt.Audit != nil {
		t.Errorf("expected no provider and no stores, got %+v", rt)
	}

	res, err := rt.Engine.Plan(context.Background(), planning.PlanningContext{Objective: "Ship login page"}, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Decomposition.GenerationError == nil || len(res.Session.Tasks) == 0 {
		t.Errorf("expected skeleton plan, got %+v", res.Decomposition)
	}
}

func TestBuild_ConfiguredResourcesMustLoad(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing plugin", func(c *config.Config) { c.Validation.Plugin = "/nonexistent/validator" }},
		{"missing workers file", func(c *config.Config) { c.Registry.WorkersFile = "/nonexistent/workers.yaml" }},
		{"missing strategies file", func(c *config.Config) { c.Catalog.StrategiesFile = "/nonexistent/strategies.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if rt, err := Build(cfg, nil); err == nil {
				rt.Close()
				t.Fatal("expected error")
			}
		})
	}
}

func TestRuntime_WatchWorkersDisabled(t *testing.T) {
	rt, err := Build(testConfig(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if err := rt.WatchWorkers(context.Background()); err != nil {
		t.Errorf("WatchWorkers without watch enabled = %v", err)
	}
}

func TestBuild_WebhooksReceiveSessionEvents(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhook.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
			mu.Lock()
			types = append(types, p.EventType)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Notify.Webhooks = []webhook.Endpoint{{Name: "ops", URL: srv.URL}}

	rt, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rt.Notifier == nil {
		t.Fatal("expected notifier to be wired")
	}
	if _, err := rt.Engine.Plan(context.Background(), planning.PlanningContext{Objective: "Ship login page"}, 0); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 3 {
		t.Errorf("expected 3 webhook deliveries, got %v", types)
	}
}
