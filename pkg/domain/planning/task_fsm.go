package planning

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State identifiers for statekit. They must match the TaskStatus values.
const (
	StatePlanned    = "planned"
	StateAssigned   = "assigned"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateBlocked    = "blocked"
)

func init() {
	stateMap := map[string]TaskStatus{
		StatePlanned:    StatusPlanned,
		StateAssigned:   StatusAssigned,
		StateInProgress: StatusInProgress,
		StateCompleted:  StatusCompleted,
		StateBlocked:    StatusBlocked,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match TaskStatus %q", fsmState, status))
		}
	}
}

// TaskContext carries state data for the machine guards.
type TaskContext struct {
	TaskID string
	Guard  func(taskID string, event string) bool
}

// TaskStateMachine drives a single task through its lifecycle.
type TaskStateMachine struct {
	taskID      string
	interpreter *statekit.Interpreter[TaskContext]
}

// NewTaskStateMachine builds a machine positioned at initialState. The guard,
// when set, can veto assign and start events.
func NewTaskStateMachine(initialState string, taskID string, guard func(string, string) bool) (*TaskStateMachine, error) {
	if guard == nil {
		guard = func(string, string) bool { return true }
	}

	builder := statekit.NewMachine[TaskContext]("task-lifecycle").
		WithInitial(statekit.StateID(initialState)).
		WithContext(TaskContext{
			TaskID: taskID,
			Guard:  guard,
		}).
		WithGuard("workGuard", func(ctx TaskContext, e statekit.Event) bool {
			return ctx.Guard(ctx.TaskID, string(e.Type))
		})

	builder.State(StatePlanned).
		On(EventAssign).Target(StateAssigned).Guard("workGuard").
		On(EventBlock).Target(StateBlocked).
		Done()

	builder.State(StateAssigned).
		On(EventStart).Target(StateInProgress).Guard("workGuard").
		On(EventRelease).Target(StatePlanned).
		On(EventBlock).Target(StateBlocked).
		Done()

	builder.State(StateInProgress).
		On(EventComplete).Target(StateCompleted).
		On(EventBlock).Target(StateBlocked).
		Done()

	builder.State(StateBlocked).
		On(EventUnblock).Target(StatePlanned).
		Done()

	// Completed is terminal; the self-loop only satisfies the builder's
	// requirement that every state declares a transition.
	builder.State(StateCompleted).
		On(EventComplete).Target(StateCompleted).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build task state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &TaskStateMachine{taskID: taskID, interpreter: interpreter}, nil
}

// Transition fires event and returns a *TransitionError when the state did not move.
func (sm *TaskStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if sm.Current() != before {
		return nil
	}
	return &TransitionError{
		TaskID:     sm.taskID,
		FromStatus: TaskStatus(before),
		Event:      event,
	}
}

func (sm *TaskStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}

// CurrentStatus returns the current state as a TaskStatus.
func (sm *TaskStateMachine) CurrentStatus() TaskStatus {
	return TaskStatus(sm.Current())
}

// ValidEvents delegates to the TaskStatus value object.
func (sm *TaskStateMachine) ValidEvents() []string {
	return sm.CurrentStatus().ValidEvents()
}

// IsFinal returns true if the task reached a terminal status.
func (sm *TaskStateMachine) IsFinal() bool {
	return sm.CurrentStatus().IsFinal()
}

// ApplyEvent moves task through the lifecycle with a fresh machine and
// returns the updated copy.
func ApplyEvent(task Task, event string) (Task, error) {
	sm, err := NewTaskStateMachine(string(task.Status), task.ID, nil)
	if err != nil {
		return task, err
	}
	if err := sm.Transition(event); err != nil {
		return task, err
	}
	task.Status = sm.CurrentStatus()
	return task, nil
}
