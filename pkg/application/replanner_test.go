package application

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

func TestReplan_SupersedesAndPreservesHistory(t *testing.T) {
	p := &stubProvider{text: loginPageJSON}
	h := &memHistory{}
	e := newTestEngine(t, p, &stubValidator{}, h)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	s, err := e.Sessions.UpdateTaskStatus(ctx, s.ID, s.Tasks[0].ID, planning.EventStart)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s, err = e.Sessions.UpdateTaskStatus(ctx, s.ID, s.Tasks[1].ID, planning.EventBlock)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	w1Before, _ := e.Registry.Get("w1")

	p.text = "Security review slips a week; keep the form work moving."
	res, err := e.Replan(ctx, s.ID, "Security vendor delayed", "HIGH")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}

	if res.Previous.ID != s.ID || res.Previous.State != planning.SessionSuperseded {
		t.Errorf("previous = %s in %s", res.Previous.ID, res.Previous.State)
	}
	if res.Session.ID == s.ID || res.Session.State.IsArchived() {
		t.Errorf("new session = %s in %s", res.Session.ID, res.Session.State)
	}
	if res.Narrative == "" || res.NarrativeError != nil {
		t.Errorf("narrative = %q, err = %v", res.Narrative, res.NarrativeError)
	}
	if res.Progress.InProgress != 1 || res.Progress.Blocked != 1 || len(res.Progress.Bottlenecks) != 1 {
		t.Errorf("progress = %+v", res.Progress)
	}

	if !reflect.DeepEqual(res.Session.Tasks, s.Tasks) {
		t.Error("replanning must carry tasks forward unchanged")
	}
	for _, tag := range []string{"urgency:high", planning.ReplannedFromTag(s.ID)} {
		if !res.Session.HasTag(tag) {
			t.Errorf("missing tag %q in %v", tag, res.Session.Tags)
		}
	}
	if len(res.Session.Replans) != 1 || res.Session.Replans[0].Change != "Security vendor delayed" {
		t.Errorf("replans = %+v", res.Session.Replans)
	}
	var highRisk bool
	for _, r := range res.Session.Risk.Risks {
		if r.Level == planning.RiskHigh && strings.Contains(r.Description, "Review security") {
			highRisk = true
		}
	}
	if !highRisk {
		t.Errorf("blocked task not raised as a risk: %+v", res.Session.Risk.Risks)
	}

	old, err := e.Sessions.Get(s.ID)
	if err != nil {
		t.Fatalf("Get superseded: %v", err)
	}
	if old.State != planning.SessionSuperseded || !reflect.DeepEqual(old.Tasks, s.Tasks) || old.HasTag("urgency:high") {
		t.Errorf("superseded session altered: %+v", old)
	}
	if active, ok := e.Sessions.Active(); !ok || active.ID != res.Session.ID {
		t.Errorf("active = %v, %v", active, ok)
	}
	if w1, _ := e.Registry.Get("w1"); w1.Workload != w1Before.Workload {
		t.Errorf("replanning changed worker load: %v -> %v", w1Before.Workload, w1.Workload)
	}
	if kinds := h.kinds(); kinds[len(kinds)-1] != history.KindReplanning {
		t.Errorf("history = %v", kinds)
	}
}

func TestReplan_Chain(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	first, err := e.Replan(ctx, s.ID, "budget cut", "")
	if err != nil {
		t.Fatalf("first Replan: %v", err)
	}
	second, err := e.Replan(ctx, first.Session.ID, "scope reduced", "low")
	if err != nil {
		t.Fatalf("second Replan: %v", err)
	}

	if len(second.Session.Replans) != 2 {
		t.Errorf("replans = %d, want 2", len(second.Session.Replans))
	}
	for _, tag := range []string{"urgency:medium", "urgency:low", planning.ReplannedFromTag(first.Session.ID)} {
		if !second.Session.HasTag(tag) {
			t.Errorf("missing tag %q", tag)
		}
	}
	if h := e.Sessions.History(); len(h) != 2 {
		t.Errorf("history has %d sessions, want 2", len(h))
	}
	if _, err := e.Replan(ctx, s.ID, "again", "low"); !errors.Is(err, planning.ErrSessionArchived) {
		t.Errorf("replan of superseded session err = %v", err)
	}
}

func TestReplan_ToleratesNarrativeFailure(t *testing.T) {
	p := &stubProvider{text: loginPageJSON}
	e := newTestEngine(t, p, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)

	p.err = errUnavailable
	res, err := e.Replan(context.Background(), s.ID, "team member out sick", "critical")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if res.Narrative != "" || !errors.Is(res.NarrativeError, errUnavailable) {
		t.Errorf("narrative = %q, err = %v", res.Narrative, res.NarrativeError)
	}
	if !res.Session.HasTag("urgency:critical") {
		t.Errorf("tags = %v", res.Session.Tags)
	}
}

func TestReplan_FailuresChangeNothing(t *testing.T) {
	p := &stubProvider{text: loginPageJSON}
	e := newTestEngine(t, p, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)

	if _, err := e.Replan(context.Background(), s.ID, "change", "whenever"); !errors.Is(err, planning.ErrInvalidUrgency) {
		t.Errorf("invalid urgency err = %v", err)
	}
	if _, err := e.Replan(context.Background(), "missing", "change", "low"); !errors.Is(err, planning.ErrSessionNotFound) {
		t.Errorf("unknown session err = %v", err)
	}

	p.block = true
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Replan(ctx, s.ID, "change", "low"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cancelled replan err = %v", err)
	}

	if active, ok := e.Sessions.Active(); !ok || active.ID != s.ID || active.State.IsArchived() {
		t.Errorf("active = %v, %v", active, ok)
	}
	if len(e.Sessions.History()) != 0 {
		t.Error("failed replans must not archive anything")
	}
}

// interruptingProvider runs onCall before answering, standing in for a
// status report that lands while the narrative is generated.
type interruptingProvider struct {
	stubProvider
	calls  int
	onCall func(call int)
}

func (p *interruptingProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	return p.stubProvider.Complete(ctx, req)
}

func TestReplan_RetriesWhenSessionChangesDuringNarrative(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	p := &interruptingProvider{stubProvider: stubProvider{text: "Carry on."}}
	p.onCall = func(call int) {
		if call != 1 {
			return
		}
		if _, err := e.Sessions.UpdateTaskStatus(ctx, s.ID, s.Tasks[1].ID, planning.EventBlock); err != nil {
			t.Errorf("block: %v", err)
		}
	}
	e.Replanner.provider = p

	res, err := e.Replan(ctx, s.ID, "vendor delayed", "medium")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("narrative generated %d times, want 2", p.calls)
	}
	if res.Narrative != "Carry on." || res.NarrativeError != nil {
		t.Errorf("narrative = %q, err = %v", res.Narrative, res.NarrativeError)
	}
	if res.Progress.Blocked != 1 {
		t.Errorf("progress misses the concurrent block: %+v", res.Progress)
	}
	if !reflect.DeepEqual(res.Progress, res.Previous.Progress()) {
		t.Errorf("progress %+v does not describe the superseded session %+v", res.Progress, res.Previous.Progress())
	}
}

func TestReplan_DropsNarrativeWhenSessionKeepsChanging(t *testing.T) {
	e := newTestEngine(t, &stubProvider{text: loginPageJSON}, &stubValidator{}, nil)
	s := plannedLoginSession(t, e)
	ctx := context.Background()

	p := &interruptingProvider{stubProvider: stubProvider{text: "Carry on."}}
	p.onCall = func(call int) {
		event := planning.EventBlock
		if call%2 == 0 {
			event = planning.EventUnblock
		}
		if _, err := e.Sessions.UpdateTaskStatus(ctx, s.ID, s.Tasks[1].ID, event); err != nil {
			t.Errorf("%s: %v", event, err)
		}
	}
	e.Replanner.provider = p

	res, err := e.Replan(ctx, s.ID, "vendor delayed", "medium")
	if err != nil {
		t.Fatalf("Replan: %v", err)
	}
	if p.calls != maxReplanAttempts {
		t.Errorf("narrative generated %d times, want %d", p.calls, maxReplanAttempts)
	}
	if res.Narrative != "" || !errors.Is(res.NarrativeError, ErrStaleNarrative) {
		t.Errorf("narrative = %q, err = %v", res.Narrative, res.NarrativeError)
	}
	if !reflect.DeepEqual(res.Progress, res.Previous.Progress()) {
		t.Errorf("progress %+v does not describe the superseded session %+v", res.Progress, res.Previous.Progress())
	}
}
