package events

import (
	"context"
	"log/slog"
)

// LoggingHandler logs every event.
type LoggingHandler struct {
	logger *slog.Logger
}

func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) Handle(ctx context.Context, event DomainEvent) error {
	env := event.Envelope()
	attrs := []any{
		"event_type", event.EventType(),
		"session_id", event.AggregateID(),
	}
	for _, key := range []string{"task_id", "from", "to", "source", "urgency", "state"} {
		if v, ok := env.Metadata[key]; ok && v != "" {
			attrs = append(attrs, key, v)
		}
	}
	h.logger.InfoContext(ctx, "domain event", attrs...)
	return nil
}

func (h *LoggingHandler) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "LoggingHandler",
		Handler:    h.Handle,
		EventTypes: []string{Wildcard},
	}
}

// AuditHandler appends every event to the audit log. Audit is a side
// channel: failures are logged and swallowed so they never fail a session
// operation.
type AuditHandler struct {
	log    AuditLog
	logger *slog.Logger
}

func NewAuditHandler(log AuditLog, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{log: log, logger: logger}
}

func (h *AuditHandler) Handle(ctx context.Context, event DomainEvent) error {
	if h.log == nil {
		return nil
	}
	if err := h.log.Append(event.Envelope()); err != nil {
		h.logger.WarnContext(ctx, "audit append failed",
			"event_type", event.EventType(),
			"session_id", event.AggregateID(),
			"error", err)
	}
	return nil
}

func (h *AuditHandler) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "AuditHandler",
		Handler:    h.Handle,
		EventTypes: []string{Wildcard},
	}
}
