package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

func newTestEngine(t *testing.T, p *stubProvider, v policy.Validator, h history.Store) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.ValidationTimeout = 50 * time.Millisecond
	cfg.Decomposer.ValidationTimeout = 50 * time.Millisecond
	cfg.NarrativeTimeout = time.Second

	e := NewEngine(EngineDeps{Provider: p, Validator: v, History: h}, cfg)
	e.Decomposer.newID = sequentialIDs("task")
	e.Decomposer.now = fixedClock()
	e.Sessions.newID = sequentialIDs("session")
	e.Sessions.now = fixedClock()
	return e
}

func loginWorkers() []worker.Profile {
	perf := worker.PerformanceMetrics{SuccessRate: 0.9, QualityScore: 0.9}
	return []worker.Profile{
		{ID: "w1", Skills: []string{"coding"}, Performance: perf, Availability: worker.Available, Workload: 10},
		{ID: "w2", Skills: []string{"analysis"}, Performance: perf, Availability: worker.Available, Workload: 10},
	}
}

func registerAll(t *testing.T, r *worker.Registry, profiles []worker.Profile) {
	t.Helper()
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.ID, err)
		}
	}
}

// plannedLoginSession creates, decomposes and assigns the login scenario.
func plannedLoginSession(t *testing.T, e *Engine) *planning.Session {
	t.Helper()
	registerAll(t, e.Registry, loginWorkers())
	res, err := e.Plan(context.Background(), loginContext, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return res.Session
}

func TestCreate_RejectsContext(t *testing.T) {
	tests := []struct {
		name      string
		pctx      planning.PlanningContext
		v         policy.Validator
		wantErr   error
		wantCause error
	}{
		{
			name:    "empty objective",
			pctx:    planning.PlanningContext{Objective: "   "},
			v:       &stubValidator{},
			wantErr: ErrEmptyObjective,
		},
		{
			name:    "policy rejection",
			pctx:    planning.PlanningContext{Objective: "Leak the customer password list"},
			v:       &stubValidator{reject: []string{"password"}},
			wantErr: ErrContextRejected,
		},
		{
			name:      "validator unavailable",
			pctx:      loginContext,
			v:         &stubValidator{err: errUnavailable},
			wantErr:   ErrContextRejected,
			wantCause: errUnavailable,
		},
		{
			name:    "validator timeout",
			pctx:    loginContext,
			v:       &stubValidator{delay: time.Second},
			wantErr: ErrContextRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, &stubProvider{text: loginPageJSON}, tt.v, nil)
			s, err := e.Sessions.Create(context.Background(), tt.pctx)
			if s != nil || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() = %v, %v; want error %v", s, err, tt.wantErr)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("error %v does not wrap %v", err, tt.wantCause)
			}
			if len(e.Sessions.OpenSessions()) != 0 {
				t.Error("rejected context must not open a session")
			}
			if _, ok := e.Sessions.Active(); ok {
				t.Error("rejected context must not set an active session")
			}
		})
	}
}

func TestCreate_OpensActiveSession(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, &stubValidator{}, nil)
	var seen []string
	e.Dispatcher.RegisterWildcard("recorder", func(_ context.Context, ev events.DomainEvent) error {
		seen = append(seen, ev.EventType())
		return nil
	})

	s, err := e.Sessions.Create(context.Background(), loginContext)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID != "session-1" || s.State != planning.SessionCreated {
		t.Errorf("session = %s in %s", s.ID, s.State)
	}
	if s.Metrics.FeasibilityRating != 100 {
		t.Errorf("empty session feasibility = %v, want 100", s.Metrics.FeasibilityRating)
	}
	if len(s.Timeline.Milestones) != len(loginContext.SuccessCriteria) {
		t.Errorf("milestones = %d", len(s.Timeline.Milestones))
	}
	active, ok := e.Sessions.Active()
	if !ok || active.ID != s.ID {
		t.Errorf("active = %v, %v", active, ok)
	}
	if len(seen) != 1 || seen[0] != events.EventTypeSessionCreated {
		t.Errorf("events = %v", seen)
	}
}

func TestDecomposeInto_MergesAndAdvances(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{score: 80}, nil)
	ctx := context.Background()
	s, err := e.Sessions.Create(ctx, loginContext)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := e.Sessions.DecomposeInto(ctx, s.ID, "", 0)
	if err != nil {
		t.Fatalf("DecomposeInto: %v", err)
	}
	if out.Added != 2 || len(out.Session.Tasks) != 2 {
		t.Fatalf("added = %d, tasks = %d", out.Added, len(out.Session.Tasks))
	}
	if out.Session.State != planning.SessionPopulated {
		t.Errorf("state = %s", out.Session.State)
	}
	if out.Session.Metrics.PlanningScore != 80 {
		t.Errorf("planning score = %v", out.Session.Metrics.PlanningScore)
	}

	// A second pass yields new IDs, so the tasks append without replacing.
	out, err = e.Sessions.DecomposeInto(ctx, s.ID, "Harden login page", 0)
	if err != nil {
		t.Fatalf("second DecomposeInto: %v", err)
	}
	if len(out.Session.Tasks) != 4 || out.Session.Tasks[0].ID != "task-1" {
		t.Errorf("tasks after merge = %d, first = %s", len(out.Session.Tasks), out.Session.Tasks[0].ID)
	}
}

func TestDecomposeInto_CancelledLeavesSessionUntouched(t *testing.T) {
	e := newTestEngine(t, &stubProvider{block: true}, &stubValidator{}, nil)
	s, err := e.Sessions.Create(context.Background(), loginContext)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Sessions.DecomposeInto(ctx, s.ID, "", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	got, err := e.Sessions.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Tasks) != 0 || got.State != planning.SessionCreated {
		t.Errorf("session changed: %d tasks, state %s", len(got.Tasks), got.State)
	}
}

func TestAssignAll_LoginScenario(t *testing.T) {
	h := &memHistory{}
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, h)
	s := plannedLoginSession(t, e)

	if s.State != planning.SessionAssigned {
		t.Errorf("state = %s", s.State)
	}
	want := map[string]string{"Implement form": "w1", "Review security": "w2"}
	for _, task := range s.Tasks {
		if task.Status != planning.StatusAssigned {
			t.Errorf("%s status = %s", task.Title, task.Status)
		}
		if len(task.SuggestedWorkers) != 1 || task.SuggestedWorkers[0] != want[task.Title] {
			t.Errorf("%s suggested = %v, want %s", task.Title, task.SuggestedWorkers, want[task.Title])
		}
	}
	for _, id := range []string{"w1", "w2"} {
		p, _ := e.Registry.Get(id)
		if p.Workload != 20 || len(p.AssignedTasks) != 1 {
			t.Errorf("%s workload = %v tasks = %v", id, p.Workload, p.AssignedTasks)
		}
	}
	if s.Metrics.ResourceOptimization != 60 {
		t.Errorf("resource optimization = %v, want 60", s.Metrics.ResourceOptimization)
	}

	kinds := h.kinds()
	if len(kinds) != 2 || kinds[1] != history.KindAssignment {
		t.Errorf("history = %v", kinds)
	}
}

func TestAssignAll_ExplicitWorkersLeaveRegistryAlone(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	ctx := context.Background()
	s, _ := e.Sessions.Create(ctx, loginContext)
	if _, err := e.Sessions.DecomposeInto(ctx, s.ID, "", 0); err != nil {
		t.Fatalf("DecomposeInto: %v", err)
	}

	out, err := e.Sessions.AssignAll(ctx, s.ID, loginWorkers())
	if err != nil {
		t.Fatalf("AssignAll: %v", err)
	}
	if out.Result.AssignedCount() != 2 {
		t.Errorf("assigned = %d", out.Result.AssignedCount())
	}
	if e.Registry.Len() != 0 {
		t.Error("unregistered workers must not be added to the registry")
	}
}

func TestUpdateTaskStatus_Lifecycle(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	form, security := s.Tasks[0], s.Tasks[1]
	for _, step := range []struct{ task, event string }{
		{form.ID, planning.EventStart},
		{form.ID, planning.EventComplete},
	} {
		var err error
		if s, err = e.Sessions.UpdateTaskStatus(ctx, s.ID, step.task, step.event); err != nil {
			t.Fatalf("%s %s: %v", step.event, step.task, err)
		}
	}
	if s.State != planning.SessionMonitored {
		t.Errorf("state = %s", s.State)
	}
	if w1, _ := e.Registry.Get("w1"); w1.Workload != 10 || len(w1.AssignedTasks) != 0 {
		t.Errorf("w1 after completion = %v %v", w1.Workload, w1.AssignedTasks)
	}

	// Blocking releases the holder and a later unblock returns the task to planning.
	if s, _ = e.Sessions.UpdateTaskStatus(ctx, s.ID, security.ID, planning.EventBlock); s.Tasks[1].Status != planning.StatusBlocked {
		t.Fatalf("security status = %s", s.Tasks[1].Status)
	}
	if len(s.Tasks[1].SuggestedWorkers) != 0 {
		t.Errorf("blocked task keeps suggestion %v", s.Tasks[1].SuggestedWorkers)
	}
	if w2, _ := e.Registry.Get("w2"); w2.Workload != 10 {
		t.Errorf("w2 after block = %v", w2.Workload)
	}

	for _, ev := range []string{planning.EventUnblock, planning.EventAssign, planning.EventStart, planning.EventComplete} {
		var err error
		if s, err = e.Sessions.UpdateTaskStatus(ctx, s.ID, security.ID, ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if s.State != planning.SessionCompleted {
		t.Errorf("state = %s, want completed", s.State)
	}
	if _, ok := e.Sessions.Active(); ok {
		t.Error("completed session must not stay active")
	}
	if h := e.Sessions.History(); len(h) != 1 || h[0].ID != s.ID {
		t.Errorf("history = %v", h)
	}
	if _, err := e.Sessions.UpdateTaskStatus(ctx, s.ID, security.ID, planning.EventBlock); !errors.Is(err, planning.ErrSessionArchived) {
		t.Errorf("update on archived session err = %v", err)
	}
}

func TestUpdateTaskStatus_Errors(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	tests := []struct {
		name    string
		session string
		task    string
		event   string
		wantErr error
	}{
		{"invalid transition", s.ID, s.Tasks[0].ID, planning.EventComplete, planning.ErrInvalidTransition},
		{"unknown task", s.ID, "nope", planning.EventStart, planning.ErrTaskNotFound},
		{"unknown session", "missing", s.Tasks[0].ID, planning.EventStart, planning.ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Sessions.UpdateTaskStatus(ctx, tt.session, tt.task, tt.event); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, _ := e.Sessions.Get(s.ID)
	if got.Tasks[0].Status != planning.StatusAssigned || got.State != planning.SessionAssigned {
		t.Errorf("failed updates changed the session: %s %s", got.Tasks[0].Status, got.State)
	}
}

func TestComplete_ArchivesAndFreezes(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	done, err := e.Sessions.Complete(ctx, s.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.State != planning.SessionCompleted {
		t.Errorf("state = %s", done.State)
	}

	got, err := e.Sessions.Get(s.ID)
	if err != nil {
		t.Fatalf("Get archived: %v", err)
	}
	got.Tasks[0].Title = "mutated"
	again, _ := e.Sessions.Get(s.ID)
	if again.Tasks[0].Title == "mutated" {
		t.Error("archived session was mutated through a returned copy")
	}

	if _, err := e.Sessions.Complete(ctx, s.ID); !errors.Is(err, planning.ErrSessionArchived) {
		t.Errorf("second Complete err = %v", err)
	}
	if _, err := e.Sessions.DecomposeInto(ctx, s.ID, "", 0); !errors.Is(err, planning.ErrSessionArchived) {
		t.Errorf("DecomposeInto on archived err = %v", err)
	}
}

func TestSessionManager_ConcurrentOperations(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := e.Sessions.Create(ctx, loginContext)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, s.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for _, id := range ids {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := e.Sessions.DecomposeInto(ctx, id, "", 0); err != nil {
					errs <- err
				}
				if _, err := e.Sessions.RecomputeMetrics(id); err != nil {
					errs <- err
				}
				if _, err := e.Sessions.Get(id); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation: %v", err)
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		s, _ := e.Sessions.Get(id)
		if len(s.Tasks) != 8 {
			t.Errorf("session %s has %d tasks, want 8", id, len(s.Tasks))
		}
		for _, task := range s.Tasks {
			if seen[task.ID] {
				t.Errorf("task id %s issued twice", task.ID)
			}
			seen[task.ID] = true
		}
	}
}

func TestAssignAll_ConcurrentSessionsShareRegistry(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	perf := worker.PerformanceMetrics{SuccessRate: 0.9, QualityScore: 0.9}
	registerAll(t, e.Registry, []worker.Profile{
		{ID: "w1", Skills: []string{"coding"}, Performance: perf, Availability: worker.Available},
		{ID: "w2", Skills: []string{"analysis"}, Performance: perf, Availability: worker.Available},
	})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 40; i++ {
		s, err := e.Sessions.Create(ctx, loginContext)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := e.Sessions.DecomposeInto(ctx, s.ID, "", 0); err != nil {
			t.Fatalf("DecomposeInto: %v", err)
		}
		ids = append(ids, s.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []*AssignOutcome
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := e.Sessions.AssignAll(ctx, id, nil)
			if err != nil {
				t.Errorf("AssignAll(%s): %v", id, err)
				return
			}
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	wantTasks := make(map[string]map[string]bool)
	wantLoad := make(map[string]float64)
	for _, out := range outcomes {
		for workerID, tasks := range out.Result.Mapping {
			if wantTasks[workerID] == nil {
				wantTasks[workerID] = make(map[string]bool)
			}
			for _, task := range tasks {
				wantTasks[workerID][task.ID] = true
				wantLoad[workerID] += worker.WorkloadIncrement(task.EstimatedHours)
			}
		}
	}

	for _, p := range e.Registry.Snapshot() {
		if p.Workload > worker.MaxWorkload {
			t.Errorf("worker %s overcommitted: %v", p.ID, p.Workload)
		}
		if p.Workload != wantLoad[p.ID] {
			t.Errorf("worker %s workload = %v, sessions committed %v", p.ID, p.Workload, wantLoad[p.ID])
		}
		if len(p.AssignedTasks) != len(wantTasks[p.ID]) {
			t.Errorf("worker %s holds %d tasks, sessions assigned %d", p.ID, len(p.AssignedTasks), len(wantTasks[p.ID]))
		}
		for _, id := range p.AssignedTasks {
			if !wantTasks[p.ID][id] {
				t.Errorf("worker %s holds task %s no session assigned to it", p.ID, id)
			}
		}
	}
}
