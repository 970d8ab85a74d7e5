package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskforge/pkg/domain/assignment"
	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/strategy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

const actorEngine = "engine"

// sessionEntry serializes every operation on one open session.
type sessionEntry struct {
	mu       sync.Mutex
	session  *planning.Session
	archived bool
}

// SessionManager owns the lifecycle of planning sessions. Operations on one
// session are serialized; different sessions proceed in parallel. Sessions
// handed to callers are copies.
type SessionManager struct {
	mu       sync.RWMutex
	open     map[string]*sessionEntry
	archive  []*planning.Session
	byID     map[string]int
	activeID string

	catalog    *strategy.Catalog
	registry   *worker.Registry
	decomposer *Decomposer
	optimizer  *assignment.Optimizer
	validator  policy.Validator
	records    history.Store
	dispatcher *events.Dispatcher

	weights           planning.MetricWeights
	validationTimeout time.Duration
	logger            *slog.Logger

	newID func() string
	now   func() time.Time
}

type SessionManagerConfig struct {
	Metrics           planning.MetricWeights
	ValidationTimeout time.Duration
}

// SessionDeps are the collaborators a SessionManager drives. Registry,
// Catalog and Decomposer are required.
type SessionDeps struct {
	Catalog    *strategy.Catalog
	Registry   *worker.Registry
	Decomposer *Decomposer
	Optimizer  *assignment.Optimizer
	Validator  policy.Validator
	History    history.Store
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
}

func NewSessionManager(deps SessionDeps, cfg SessionManagerConfig) *SessionManager {
	m := &SessionManager{
		open:              make(map[string]*sessionEntry),
		byID:              make(map[string]int),
		catalog:           deps.Catalog,
		registry:          deps.Registry,
		decomposer:        deps.Decomposer,
		optimizer:         deps.Optimizer,
		validator:         deps.Validator,
		records:           deps.History,
		dispatcher:        deps.Dispatcher,
		weights:           cfg.Metrics,
		validationTimeout: cfg.ValidationTimeout,
		logger:            deps.Logger,
		newID:             uuid.NewString,
		now:               time.Now,
	}
	if m.optimizer == nil {
		m.optimizer = assignment.New(assignment.DefaultWeights())
	}
	if m.validator == nil {
		m.validator = policy.NewRuleSet()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.weights == (planning.MetricWeights{}) {
		m.weights = planning.DefaultMetricWeights()
	}
	return m
}

// Create validates the raw context and, when accepted, opens a session that
// becomes the active one. Rejection is fatal: no session is materialized.
func (m *SessionManager) Create(ctx context.Context, pctx planning.PlanningContext) (*planning.Session, error) {
	if strings.TrimSpace(pctx.Objective) == "" {
		return nil, ErrEmptyObjective
	}

	verdict, err := validateWithin(ctx, m.validator, m.validationTimeout, pctx.Describe(), policy.PurposePlanningContext)
	if err != nil {
		m.logger.Warn("context validation unavailable", "error", err)
		return nil, &ValidationError{Cause: err}
	}
	if !verdict.Valid {
		return nil, &ValidationError{Verdict: verdict}
	}

	var selected *planning.SelectedStrategy
	if m.catalog != nil {
		if ranked, ok := m.catalog.Select(pctx); ok {
			selected = &planning.SelectedStrategy{
				ID:    ranked.Strategy.ID,
				Name:  ranked.Strategy.Name,
				Risk:  ranked.Strategy.Risk,
				Score: ranked.Score,
			}
		}
	}

	s := planning.NewSession(m.newID(), pctx, selected, m.now().UTC())
	m.recompute(s)

	m.mu.Lock()
	m.open[s.ID] = &sessionEntry{session: s}
	m.activeID = s.ID
	m.mu.Unlock()

	m.logger.Info("planning session created", "session_id", s.ID, "strategy", strategyName(selected))
	m.dispatch(ctx, &events.SessionCreated{
		BaseEvent: events.NewBase(events.EventTypeSessionCreated, s.ID, actorEngine, s.CreatedAt),
		Objective: pctx.Objective,
		Strategy:  strategyName(selected),
	})
	return s.Clone(), nil
}

// DecomposeOutcome is the session after a merge plus the decomposition report.
type DecomposeOutcome struct {
	Session *planning.Session
	Result  *DecompositionResult
	Added   int
}

// DecomposeInto decomposes objective (the session's own when empty) and
// merges the tasks. Existing tasks are never removed. Nothing is mutated if
// ctx ends before the decomposition completes.
func (m *SessionManager) DecomposeInto(ctx context.Context, sessionID, objective string, maxTasks int) (*DecomposeOutcome, error) {
	var out *DecomposeOutcome
	err := m.withSession(sessionID, func(s *planning.Session) error {
		if objective == "" {
			objective = s.Context.Objective
		}
		res, err := m.decomposer.Decompose(ctx, objective, s.Context, maxTasks)
		if err != nil {
			return err
		}

		next := s.Clone()
		added := next.MergeTasks(res.Tasks)
		if err := planning.ValidateDependencies(next.Tasks); err != nil {
			return fmt.Errorf("merge decomposition: %w", err)
		}
		if added > 0 {
			if next.State, err = next.State.Advance(planning.SessionPopulated); err != nil {
				return err
			}
		}
		m.recompute(next)
		*s = *next

		out = &DecomposeOutcome{Session: s.Clone(), Result: res, Added: added}
		m.dispatch(ctx, &events.TasksDecomposed{
			BaseEvent: events.NewBase(events.EventTypeTasksDecomposed, s.ID, actorEngine, s.UpdatedAt),
			Added:     added,
			Dropped:   res.Dropped,
			Source:    string(res.Source),
		})
		return nil
	})
	return out, err
}

// AssignOutcome is the session after assignment plus the optimizer's result.
type AssignOutcome struct {
	Session *planning.Session
	Result  assignment.Result
}

// AssignAll assigns the session's planned tasks. With nil workers the
// optimizer runs against the registry inside a single registry commit, so
// concurrent sessions never assign against stale loads. An explicit pool is
// caller-owned; updated loads are written back for workers the registry knows.
func (m *SessionManager) AssignAll(ctx context.Context, sessionID string, workers []worker.Profile) (*AssignOutcome, error) {
	var out *AssignOutcome
	err := m.withSession(sessionID, func(s *planning.Session) error {
		var (
			res      assignment.Result
			next     *planning.Session
			poolSize int
		)
		plan := func(pool []worker.Profile) ([]worker.Profile, error) {
			poolSize = len(pool)
			res = m.optimizer.Assign(s.Tasks, pool)
			next = s.Clone()
			next.Tasks = res.Tasks
			next.AddAssignedWorkers(res.WorkerOrder...)
			if res.AssignedCount() > 0 {
				state, err := next.State.Advance(planning.SessionAssigned)
				if err != nil {
					return nil, err
				}
				next.State = state
			}
			return res.Workers, nil
		}

		switch {
		case workers == nil && m.registry != nil:
			if err := m.registry.Commit(plan); err != nil {
				return fmt.Errorf("commit assignment: %w", err)
			}
		default:
			updated, err := plan(workers)
			if err != nil {
				return err
			}
			if m.registry != nil {
				if err := m.registry.Apply(updated); err != nil {
					return fmt.Errorf("apply assignment: %w", err)
				}
			}
		}
		m.recompute(next)
		*s = *next

		if len(res.Unassigned) > 0 {
			m.logger.Warn("tasks left unassigned", "session_id", s.ID, "count", len(res.Unassigned))
		}
		m.appendRecord(ctx, history.AssignmentPattern{
			SessionID:   s.ID,
			TaskCount:   res.AssignedCount() + len(res.Unassigned),
			WorkerCount: poolSize,
			Mapping:     res.TaskIDs(),
			At:          s.UpdatedAt,
		})

		unassigned := make([]string, len(res.Unassigned))
		for i, t := range res.Unassigned {
			unassigned[i] = t.ID
		}
		m.dispatch(ctx, &events.TasksAssigned{
			BaseEvent:  events.NewBase(events.EventTypeTasksAssigned, s.ID, actorEngine, s.UpdatedAt),
			Mapping:    res.TaskIDs(),
			Unassigned: unassigned,
		})

		out = &AssignOutcome{Session: s.Clone(), Result: res}
		return nil
	})
	return out, err
}

// RecomputeMetrics rederives the session's quality metrics.
func (m *SessionManager) RecomputeMetrics(sessionID string) (planning.QualityMetrics, error) {
	var metrics planning.QualityMetrics
	err := m.withSession(sessionID, func(s *planning.Session) error {
		m.recompute(s)
		metrics = s.Metrics
		return nil
	})
	return metrics, err
}

// UpdateTaskStatus applies an execution report to a task. Completing,
// releasing or blocking a held task frees its worker's load. The session is
// archived as completed once every task is done.
func (m *SessionManager) UpdateTaskStatus(ctx context.Context, sessionID, taskID, event string) (*planning.Session, error) {
	var out *planning.Session
	var archived bool
	err := m.withSession(sessionID, func(s *planning.Session) error {
		i, ok := s.TaskIndex(taskID)
		if !ok {
			return fmt.Errorf("%w: %s", planning.ErrTaskNotFound, taskID)
		}
		before := s.Tasks[i]
		updated, err := planning.ApplyEvent(before, event)
		if err != nil {
			return err
		}
		state, err := s.State.Advance(planning.SessionMonitored)
		if err != nil {
			return err
		}

		holder := ""
		if len(before.SuggestedWorkers) > 0 {
			holder = before.SuggestedWorkers[0]
		}
		holding := before.Status == planning.StatusAssigned || before.Status == planning.StatusInProgress
		if holder != "" && holding && updated.Status != planning.StatusInProgress {
			m.releaseWorker(holder, before)
			if updated.Status != planning.StatusCompleted {
				updated.SuggestedWorkers = nil
			}
		}
		s.Tasks[i] = updated
		s.State = state
		m.recompute(s)

		m.dispatch(ctx, &events.TaskStatusChanged{
			BaseEvent: events.NewBase(events.EventTypeTaskStatusChanged, s.ID, actorEngine, s.UpdatedAt),
			TaskID:    taskID,
			From:      string(before.Status),
			To:        string(updated.Status),
			Worker:    holder,
		})

		if s.AllCompleted() {
			s.State = planning.SessionCompleted
			archived = true
		}
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if archived {
		m.archiveEntry(ctx, sessionID)
	}
	return out, nil
}

// Complete archives an open session as completed regardless of task state.
func (m *SessionManager) Complete(ctx context.Context, sessionID string) (*planning.Session, error) {
	var out *planning.Session
	err := m.withSession(sessionID, func(s *planning.Session) error {
		state, err := s.State.Advance(planning.SessionCompleted)
		if err != nil {
			return err
		}
		s.State = state
		m.recompute(s)
		out = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.archiveEntry(ctx, sessionID)
	return out, nil
}

// Get returns a copy of an open or archived session.
func (m *SessionManager) Get(sessionID string) (*planning.Session, error) {
	m.mu.RLock()
	entry, open := m.open[sessionID]
	idx, inArchive := m.byID[sessionID]
	var archived *planning.Session
	if inArchive {
		archived = m.archive[idx]
	}
	m.mu.RUnlock()

	if inArchive {
		return archived.Clone(), nil
	}
	if !open {
		return nil, fmt.Errorf("%w: %s", planning.ErrSessionNotFound, sessionID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// Active returns the engine's active session, if any.
func (m *SessionManager) Active() (*planning.Session, bool) {
	m.mu.RLock()
	id := m.activeID
	m.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	s, err := m.Get(id)
	if err != nil || s.State.IsArchived() {
		return nil, false
	}
	return s, true
}

// History returns copies of archived sessions, oldest first.
func (m *SessionManager) History() []*planning.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*planning.Session, len(m.archive))
	for i, s := range m.archive {
		out[i] = s.Clone()
	}
	return out
}

// OpenSessions returns the IDs of sessions that are not archived.
func (m *SessionManager) OpenSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	return ids
}

// supersede replaces an open session with the one build derives from a copy
// of it. The old session is archived as superseded and the new one opened,
// taking over the active slot when the old one held it.
func (m *SessionManager) supersede(sessionID string, build func(prev *planning.Session) (*planning.Session, error)) (prev, next *planning.Session, err error) {
	m.mu.RLock()
	entry, ok := m.open[sessionID]
	_, archived := m.byID[sessionID]
	m.mu.RUnlock()
	if !ok {
		if archived {
			return nil, nil, fmt.Errorf("%w: %s", planning.ErrSessionArchived, sessionID)
		}
		return nil, nil, fmt.Errorf("%w: %s", planning.ErrSessionNotFound, sessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.archived {
		return nil, nil, fmt.Errorf("%w: %s", planning.ErrSessionArchived, sessionID)
	}

	next, err = build(entry.session.Clone())
	if err != nil {
		return nil, nil, err
	}

	entry.session.State = planning.SessionSuperseded
	entry.session.UpdatedAt = m.now().UTC()
	entry.archived = true
	prev = entry.session.Clone()
	out := next.Clone()

	m.mu.Lock()
	delete(m.open, sessionID)
	m.byID[sessionID] = len(m.archive)
	m.archive = append(m.archive, prev)
	m.open[next.ID] = &sessionEntry{session: next}
	if m.activeID == sessionID || m.activeID == "" {
		m.activeID = next.ID
	}
	m.mu.Unlock()

	return prev.Clone(), out, nil
}

// withSession runs fn with the session locked. fn mutates the live session
// and must leave it untouched when returning an error.
func (m *SessionManager) withSession(sessionID string, fn func(s *planning.Session) error) error {
	m.mu.RLock()
	entry, ok := m.open[sessionID]
	_, archived := m.byID[sessionID]
	m.mu.RUnlock()

	if !ok {
		if archived {
			return fmt.Errorf("%w: %s", planning.ErrSessionArchived, sessionID)
		}
		return fmt.Errorf("%w: %s", planning.ErrSessionNotFound, sessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.archived {
		return fmt.Errorf("%w: %s", planning.ErrSessionArchived, sessionID)
	}
	return fn(entry.session)
}

// archiveEntry moves a session to history.
func (m *SessionManager) archiveEntry(ctx context.Context, sessionID string) {
	m.mu.RLock()
	entry, ok := m.open[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	if entry.archived {
		entry.mu.Unlock()
		return
	}
	entry.archived = true
	frozen := entry.session.Clone()
	entry.mu.Unlock()

	m.mu.Lock()
	delete(m.open, sessionID)
	m.byID[sessionID] = len(m.archive)
	m.archive = append(m.archive, frozen)
	if m.activeID == sessionID {
		m.activeID = ""
	}
	m.mu.Unlock()

	m.logger.Info("planning session archived", "session_id", sessionID, "state", frozen.State)
	m.dispatch(ctx, &events.SessionArchived{
		BaseEvent: events.NewBase(events.EventTypeSessionArchived, sessionID, actorEngine, m.now()),
		State:     string(frozen.State),
	})
}

func (m *SessionManager) releaseWorker(workerID string, t planning.Task) {
	if m.registry == nil {
		return
	}
	if err := m.registry.Release(workerID, t.ID, worker.WorkloadIncrement(t.Effort())); err != nil {
		m.logger.Warn("release worker load failed", "worker_id", workerID, "task_id", t.ID, "error", err)
	}
}

func (m *SessionManager) recompute(s *planning.Session) {
	s.Metrics = planning.ComputeMetrics(s.Tasks, len(s.AssignedWorkers), m.weights)
	s.UpdatedAt = m.now().UTC()
	s.Revision++
}

func (m *SessionManager) appendRecord(ctx context.Context, r history.Record) {
	if m.records == nil {
		return
	}
	if err := m.records.Append(ctx, r); err != nil {
		m.logger.Warn("history append failed", "kind", r.Kind(), "error", err)
	}
}

func (m *SessionManager) dispatch(ctx context.Context, e events.DomainEvent) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Dispatch(ctx, e); err != nil {
		m.logger.Warn("event dispatch failed", "event_type", e.EventType(), "error", err)
	}
}

func strategyName(s *planning.SelectedStrategy) string {
	if s == nil {
		return ""
	}
	return s.Name
}
