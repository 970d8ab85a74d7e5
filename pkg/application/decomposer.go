package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

type DecompositionSource string

const (
	SourceStructured DecompositionSource = "structured"
	SourceFallback   DecompositionSource = "fallback"
)

type DecomposerConfig struct {
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	ValidationTimeout time.Duration `mapstructure:"validation_timeout"`
	// HistoryExamples caps the prior decompositions embedded in the prompt.
	HistoryExamples int `mapstructure:"history_examples"`
	// MaxTasks applies when the caller passes no limit.
	MaxTasks int `mapstructure:"max_tasks"`
}

func DefaultDecomposerConfig() DecomposerConfig {
	return DecomposerConfig{
		GenerationTimeout: 2 * time.Minute,
		ValidationTimeout: 10 * time.Second,
		HistoryExamples:   5,
		MaxTasks:          10,
	}
}

// DecompositionResult reports what a decomposition produced and what it
// skipped along the way.
type DecompositionResult struct {
	Tasks []planning.Task
	// Dropped counts tasks the policy validator rejected or could not rate.
	Dropped       int
	DroppedTitles []string
	Source        DecompositionSource
	// ParseFailure is set when the response was not a usable task list.
	ParseFailure *ParseFailure
	// GenerationError is set when the generation service failed outright.
	GenerationError error
	// Examples is the number of history records embedded in the prompt.
	Examples int
}

// Decomposer turns an objective into validated tasks. It holds no session
// state and is safe for concurrent use.
type Decomposer struct {
	provider  ai.Provider
	validator policy.Validator
	history   history.Store
	cfg       DecomposerConfig
	logger    *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewDecomposer wires a decomposer. A nil validator accepts every task; a
// nil history store disables examples and pattern recording.
func NewDecomposer(provider ai.Provider, validator policy.Validator, store history.Store, cfg DecomposerConfig, logger *slog.Logger) *Decomposer {
	if validator == nil {
		validator = policy.NewRuleSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryExamples < 0 {
		cfg.HistoryExamples = 0
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultDecomposerConfig().MaxTasks
	}
	return &Decomposer{
		provider:  provider,
		validator: validator,
		history:   store,
		cfg:       cfg,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Decompose produces tasks for objective. Generation, parsing, validation
// and history failures degrade the result but never fail the call; the only
// error is the caller's context ending.
func (d *Decomposer) Decompose(ctx context.Context, objective string, pctx planning.PlanningContext, maxTasks int) (*DecompositionResult, error) {
	if maxTasks <= 0 {
		maxTasks = d.cfg.MaxTasks
	}
	res := &DecompositionResult{}

	examples := d.priorPatterns(ctx, objective)
	res.Examples = len(examples)

	text, genErr := d.generate(ctx, buildDecompositionPrompt(objective, pctx, examples, maxTasks))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var drafts []draftTask
	switch {
	case genErr != nil:
		d.logger.Warn("generation failed, using plan skeleton", "error", genErr)
		res.GenerationError = genErr
		res.Source = SourceFallback
		drafts = fallbackTasks(skeletonText(objective, pctx))
	default:
		parsed, failure := parseStructuredTasks(text)
		if failure == nil {
			res.Source = SourceStructured
			if len(parsed) > maxTasks {
				parsed = parsed[:maxTasks]
			}
			drafts = parsed
			break
		}
		d.logger.Info("response not structured, using line heuristic", "reason", failure.Reason)
		res.ParseFailure = failure
		res.Source = SourceFallback
		drafts = fallbackTasks(text)
		if len(drafts) == 0 {
			drafts = fallbackTasks(skeletonText(objective, pctx))
		}
	}

	kept, err := d.validate(ctx, drafts, res)
	if err != nil {
		return nil, err
	}
	res.Tasks = d.materialize(kept)

	d.record(ctx, objective, res)
	return res, nil
}

func (d *Decomposer) generate(ctx context.Context, prompt string) (string, error) {
	if d.provider == nil {
		return "", ai.ErrEmptyCompletion
	}
	if d.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.GenerationTimeout)
		defer cancel()
	}
	resp, err := d.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      prompt,
		System:      decompositionSystemPrompt,
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("generate tasks with %s: %w", d.provider.ID(), err)
	}
	return ai.TextOf(resp)
}

func (d *Decomposer) priorPatterns(ctx context.Context, objective string) []history.Artifact {
	if d.history == nil || d.cfg.HistoryExamples == 0 {
		return nil
	}
	found, err := d.history.Search(ctx, history.Query{
		Text:  objective,
		Kind:  history.KindDecomposition,
		Limit: d.cfg.HistoryExamples,
	})
	if err != nil {
		d.logger.Warn("history search failed", "error", err)
		return nil
	}
	if len(found) > d.cfg.HistoryExamples {
		found = found[:d.cfg.HistoryExamples]
	}
	return found
}

// validate submits each draft to the policy validator. Rejections, errors
// and timeouts drop the draft.
func (d *Decomposer) validate(ctx context.Context, drafts []draftTask, res *DecompositionResult) ([]draftTask, error) {
	kept := drafts[:0:0]
	for _, dt := range drafts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content := dt.Task.Title
		if dt.Task.Description != "" {
			content += "\n" + dt.Task.Description
		}
		verdict, err := validateWithin(ctx, d.validator, d.cfg.ValidationTimeout, content, policy.PurposeTask)
		if err != nil || !verdict.Valid {
			if err != nil {
				d.logger.Warn("task validation failed", "title", dt.Task.Title, "error", err)
			}
			res.Dropped++
			res.DroppedTitles = append(res.DroppedTitles, dt.Task.Title)
			continue
		}
		dt.Task.PolicyCompliant = true
		dt.Task.QualityScore = verdict.Score
		kept = append(kept, dt)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return kept, nil
}

// materialize assigns IDs and resolves dependencies. References may use the
// model's ids or task titles; anything that does not resolve to a surviving
// task is dropped, as is any edge that would close a cycle.
func (d *Decomposer) materialize(drafts []draftTask) []planning.Task {
	now := d.now().UTC()
	byRef := make(map[string]string, len(drafts)*2)
	tasks := make([]planning.Task, len(drafts))
	for i, dt := range drafts {
		t := dt.Task
		t.ID = d.newID()
		t.CreatedAt = now
		tasks[i] = t
		if ref := strings.ToLower(strings.TrimSpace(dt.Ref)); ref != "" {
			byRef[ref] = t.ID
		}
		if title := strings.ToLower(t.Title); title != "" {
			if _, taken := byRef[title]; !taken {
				byRef[title] = t.ID
			}
		}
	}
	for i, dt := range drafts {
		var deps []string
		for _, ref := range dt.Dependencies {
			key := strings.ToLower(strings.TrimSpace(ref))
			if key == "" {
				continue
			}
			if id, ok := byRef[key]; ok {
				deps = append(deps, id)
			}
		}
		tasks[i].Dependencies = deps
	}
	return planning.PruneDependencies(tasks)
}

func (d *Decomposer) record(ctx context.Context, objective string, res *DecompositionResult) {
	if d.history == nil || len(res.Tasks) == 0 {
		return
	}
	titles := make([]string, len(res.Tasks))
	for i, t := range res.Tasks {
		titles[i] = t.Title
	}
	err := d.history.Append(ctx, history.DecompositionPattern{
		Objective:  objective,
		TaskCount:  len(res.Tasks),
		TaskTitles: titles,
		Source:     string(res.Source),
		At:         d.now().UTC(),
	})
	if err != nil {
		d.logger.Warn("record decomposition pattern failed", "error", err)
	}
}

// skeletonText is what the line heuristic reads when generation produced
// nothing: the objective followed by the success criteria.
func skeletonText(objective string, pctx planning.PlanningContext) string {
	lines := append([]string{objective}, pctx.SuccessCriteria...)
	return strings.Join(lines, "\n")
}
