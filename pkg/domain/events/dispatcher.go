package events

import (
	"context"
	"fmt"
	"sync"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// HandlerFunc handles a domain event.
type HandlerFunc func(ctx context.Context, event DomainEvent) error

// HandlerRegistration binds a named handler to event types.
type HandlerRegistration struct {
	Name       string
	EventTypes []string
	Handler    HandlerFunc
}

type namedHandler struct {
	name    string
	handler HandlerFunc
}

// Dispatcher delivers events to registered handlers in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	// ContinueOnError runs the remaining handlers after a failure and
	// reports every failure in a DispatchError.
	ContinueOnError bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]namedHandler)}
}

func (d *Dispatcher) Register(reg HandlerRegistration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nh := namedHandler{name: reg.Name, handler: reg.Handler}
	for _, t := range reg.EventTypes {
		d.handlers[t] = append(d.handlers[t], nh)
	}
}

// RegisterHandler registers fn for the given event types.
func (d *Dispatcher) RegisterHandler(name string, fn HandlerFunc, eventTypes ...string) {
	d.Register(HandlerRegistration{Name: name, Handler: fn, EventTypes: eventTypes})
}

func (d *Dispatcher) RegisterWildcard(name string, fn HandlerFunc) {
	d.RegisterHandler(name, fn, Wildcard)
}

// Dispatch runs the handlers registered for the event's type, then the
// wildcard handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, event DomainEvent) error {
	d.mu.RLock()
	eventType := event.EventType()
	handlers := make([]namedHandler, 0, len(d.handlers[eventType])+len(d.handlers[Wildcard]))
	handlers = append(handlers, d.handlers[eventType]...)
	if eventType != Wildcard {
		handlers = append(handlers, d.handlers[Wildcard]...)
	}
	d.mu.RUnlock()

	var errs []error
	for _, nh := range handlers {
		if err := nh.handler(ctx, event); err != nil {
			err = fmt.Errorf("handler %s failed for event %s: %w", nh.name, eventType, err)
			if !d.ContinueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &DispatchError{Errors: errs}
	}
	return nil
}

// HandlerCount returns how many handlers an event of the given type reaches.
func (d *Dispatcher) HandlerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.handlers[eventType])
	if eventType != Wildcard {
		n += len(d.handlers[Wildcard])
	}
	return n
}

// DispatchError collects handler failures when ContinueOnError is set.
type DispatchError struct {
	Errors []error
}

func (e *DispatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple dispatch errors (%d)", len(e.Errors))
}

func (e *DispatchError) Unwrap() []error {
	return e.Errors
}
