package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

// maxReplanAttempts bounds how often Replan regenerates the narrative when
// the session changes underneath it.
const maxReplanAttempts = 3

var errSessionMoved = errors.New("session changed during replan")

// ReplanResult pairs the revised session with the one it superseded.
type ReplanResult struct {
	Session  *planning.Session
	Previous *planning.Session
	Progress planning.ProgressSnapshot
	// Narrative is human-facing only; empty when generation failed.
	Narrative      string
	NarrativeError error
}

// Replanner derives a revised session from an open one in response to a
// change. Task and worker state carries forward unchanged; urgency is
// recorded as a tag and never alters the outcome.
type Replanner struct {
	sessions *SessionManager
	provider ai.Provider
	records  history.Store
	timeout  time.Duration
	logger   *slog.Logger
}

func NewReplanner(sessions *SessionManager, provider ai.Provider, records history.Store, narrativeTimeout time.Duration, logger *slog.Logger) *Replanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replanner{
		sessions: sessions,
		provider: provider,
		records:  records,
		timeout:  narrativeTimeout,
		logger:   logger,
	}
}

// Replan supersedes sessionID with a new session. The previous session stays
// retrievable and unchanged in history. If ctx ends before the new session
// is recorded, nothing changes.
func (r *Replanner) Replan(ctx context.Context, sessionID, change, urgencyText string) (*ReplanResult, error) {
	urgency, err := planning.ParseUrgency(urgencyText)
	if err != nil {
		return nil, err
	}

	m := r.sessions
	for attempt := 1; ; attempt++ {
		current, err := m.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if current.State.IsArchived() {
			return nil, fmt.Errorf("%w: %s", planning.ErrSessionArchived, sessionID)
		}

		narrative, narrErr := r.narrate(ctx, current, current.Progress(), change, urgency)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var snap planning.ProgressSnapshot
		prev, next, err := m.supersede(sessionID, func(old *planning.Session) (*planning.Session, error) {
			if old.Revision != current.Revision {
				if attempt < maxReplanAttempts {
					return nil, errSessionMoved
				}
				narrative, narrErr = "", ErrStaleNarrative
			}
			snap = old.Progress()
			return r.revise(old, change, urgency, narrative), nil
		})
		if errors.Is(err, errSessionMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r.finish(ctx, prev, next, snap, change, urgency, narrative, narrErr), nil
	}
}

// revise builds the successor of old. It runs under old's session lock.
func (r *Replanner) revise(old *planning.Session, change string, urgency planning.Urgency, narrative string) *planning.Session {
	m := r.sessions
	now := m.now().UTC()
	s := old.Clone()
	s.ID = m.newID()
	s.CreatedAt = now
	s.Revision = 0
	s.Tags = append(s.Tags[:0:0], old.Tags...)
	s.AddTag(urgency.Tag())
	s.AddTag(planning.ReplannedFromTag(old.ID))
	s.Replans = append(s.Replans, planning.ReplanEvent{
		At:            now,
		FromSessionID: old.ID,
		Change:        change,
		Urgency:       string(urgency),
		Narrative:     narrative,
	})
	s.Risk = planning.AssessRisk(s.Context, s.Strategy)
	for _, b := range old.Progress().Bottlenecks {
		s.Risk.Risks = append(s.Risk.Risks, planning.Risk{Description: b, Level: planning.RiskHigh})
	}
	m.recompute(s)
	return s
}

func (r *Replanner) finish(ctx context.Context, prev, next *planning.Session, snap planning.ProgressSnapshot, change string, urgency planning.Urgency, narrative string, narrErr error) *ReplanResult {
	m := r.sessions
	r.logger.Info("session replanned",
		"from_session_id", prev.ID,
		"session_id", next.ID,
		"urgency", urgency)

	if r.records != nil {
		rec := history.ReplanningRecord{
			Change:        change,
			Urgency:       string(urgency),
			FromSessionID: prev.ID,
			ToSessionID:   next.ID,
			At:            next.CreatedAt,
		}
		if err := r.records.Append(ctx, rec); err != nil {
			r.logger.Warn("record replanning failed", "error", err)
		}
	}

	m.dispatch(ctx, &events.SessionArchived{
		BaseEvent: events.NewBase(events.EventTypeSessionArchived, prev.ID, actorEngine, next.CreatedAt),
		State:     string(prev.State),
	})
	m.dispatch(ctx, &events.SessionReplanned{
		BaseEvent:     events.NewBase(events.EventTypeSessionReplanned, next.ID, actorEngine, next.CreatedAt),
		FromSessionID: prev.ID,
		Change:        change,
		Urgency:       string(urgency),
	})

	return &ReplanResult{
		Session:        next,
		Previous:       prev,
		Progress:       snap,
		Narrative:      narrative,
		NarrativeError: narrErr,
	}
}

func (r *Replanner) narrate(ctx context.Context, s *planning.Session, snap planning.ProgressSnapshot, change string, urgency planning.Urgency) (string, error) {
	if r.provider == nil {
		return "", ai.ErrEmptyCompletion
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	resp, err := r.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      buildReplanPrompt(s, snap, change, urgency),
		System:      replanSystemPrompt,
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		r.logger.Warn("replan narrative unavailable", "session_id", s.ID, "error", err)
		return "", err
	}
	text, err := ai.TextOf(resp)
	if err != nil {
		r.logger.Warn("replan narrative empty", "session_id", s.ID)
	}
	return text, err
}
