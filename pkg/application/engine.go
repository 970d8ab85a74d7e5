package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/assignment"
	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/strategy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

type EngineConfig struct {
	Decomposer        DecomposerConfig
	Metrics           planning.MetricWeights
	Assignment        assignment.Weights
	ValidationTimeout time.Duration
	NarrativeTimeout  time.Duration
}

func DefaultEngineConfig() EngineConfig {
	d := DefaultDecomposerConfig()
	return EngineConfig{
		Decomposer:        d,
		Metrics:           planning.DefaultMetricWeights(),
		Assignment:        assignment.DefaultWeights(),
		ValidationTimeout: d.ValidationTimeout,
		NarrativeTimeout:  d.GenerationTimeout,
	}
}

// EngineDeps are the external collaborators. Nil Registry, Catalog and
// Dispatcher are replaced with empty defaults.
type EngineDeps struct {
	Provider   ai.Provider
	Validator  policy.Validator
	History    history.Store
	Registry   *worker.Registry
	Catalog    *strategy.Catalog
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
}

// Engine is one planning engine instance. It owns its registry, catalog and
// session table; nothing is shared through package state.
type Engine struct {
	Registry   *worker.Registry
	Catalog    *strategy.Catalog
	Dispatcher *events.Dispatcher
	Decomposer *Decomposer
	Sessions   *SessionManager
	Replanner  *Replanner
}

func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if deps.Registry == nil {
		deps.Registry = worker.NewRegistry()
	}
	if deps.Catalog == nil {
		deps.Catalog = strategy.NewDefaultCatalog()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewDispatcher()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Assignment == (assignment.Weights{}) {
		cfg.Assignment = assignment.DefaultWeights()
	}

	decomposer := NewDecomposer(deps.Provider, deps.Validator, deps.History, cfg.Decomposer, deps.Logger)
	sessions := NewSessionManager(SessionDeps{
		Catalog:    deps.Catalog,
		Registry:   deps.Registry,
		Decomposer: decomposer,
		Optimizer:  assignment.New(cfg.Assignment),
		Validator:  deps.Validator,
		History:    deps.History,
		Dispatcher: deps.Dispatcher,
		Logger:     deps.Logger,
	}, SessionManagerConfig{
		Metrics:           cfg.Metrics,
		ValidationTimeout: cfg.ValidationTimeout,
	})

	return &Engine{
		Registry:   deps.Registry,
		Catalog:    deps.Catalog,
		Dispatcher: deps.Dispatcher,
		Decomposer: decomposer,
		Sessions:   sessions,
		Replanner:  NewReplanner(sessions, deps.Provider, deps.History, cfg.NarrativeTimeout, deps.Logger),
	}
}

// PlanResult summarises a full create, decompose and assign pass.
type PlanResult struct {
	Session       *planning.Session
	Decomposition *DecompositionResult
	Assignment    assignment.Result
}

// Plan runs the whole pipeline for a new context. Only context rejection
// fails it; later stages degrade into the result instead.
func (e *Engine) Plan(ctx context.Context, pctx planning.PlanningContext, maxTasks int) (*PlanResult, error) {
	s, err := e.Sessions.Create(ctx, pctx)
	if err != nil {
		return nil, err
	}

	decomposed, err := e.Sessions.DecomposeInto(ctx, s.ID, "", maxTasks)
	if err != nil {
		return &PlanResult{Session: s}, err
	}

	assigned, err := e.Sessions.AssignAll(ctx, s.ID, nil)
	if err != nil {
		return &PlanResult{Session: decomposed.Session, Decomposition: decomposed.Result}, err
	}

	return &PlanResult{
		Session:       assigned.Session,
		Decomposition: decomposed.Result,
		Assignment:    assigned.Result,
	}, nil
}

// Replan delegates to the replanning controller.
func (e *Engine) Replan(ctx context.Context, sessionID, change, urgency string) (*ReplanResult, error) {
	return e.Replanner.Replan(ctx, sessionID, change, urgency)
}
