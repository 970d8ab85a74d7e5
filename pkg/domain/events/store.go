package events

import "errors"

// ErrChainBroken indicates the audit log's hash chain does not verify.
var ErrChainBroken = errors.New("audit chain integrity violation")

// AuditLog persists event envelopes as a tamper-evident chain.
type AuditLog interface {
	// Append chains the event to the last stored entry and persists it.
	Append(event *BaseEvent) error

	// LoadAll returns all entries in append order.
	LoadAll() ([]*BaseEvent, error)

	// LoadBySession returns the entries recorded for one session.
	LoadBySession(sessionID string) ([]*BaseEvent, error)

	// VerifyIntegrity walks the chain and reports the first broken link.
	VerifyIntegrity() error
}
