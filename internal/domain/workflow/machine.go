package workflow

import "fmt"

// StateMachine tracks the current state of a task lifecycle and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// taskLifecycle is the flat transition table for approval tasks: Pending moves to
// exactly one of the four terminal states, and terminal states permit nothing.
var taskLifecycle = map[State]map[Trigger]State{
	StatePending: {
		TriggerApprove:  StateApproved,
		TriggerReject:   StateRejected,
		TriggerEscalate: StateEscalated,
		TriggerDelegate: StateDelegated,
	},
}

// Defined order keeps PermittedTriggers deterministic.
var triggerOrder = []Trigger{TriggerApprove, TriggerReject, TriggerEscalate, TriggerDelegate}

// stateMachine implements StateMachine over the task lifecycle table
type stateMachine struct {
	currentState State
}

// NewTaskLifecycle creates a state machine positioned at the given state.
// It panics on states outside the task lifecycle; callers load states from
// storage where the schema constrains the value set.
func NewTaskLifecycle(current State) StateMachine {
	if !current.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", current))
	}
	return &stateMachine{currentState: current}
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	transitions, exists := taskLifecycle[m.currentState]
	if !exists {
		return false
	}
	_, ok := transitions[trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(trigger Trigger) error {
	transitions, exists := taskLifecycle[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from terminal state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	toState, ok := transitions[trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	m.currentState = toState
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	transitions, exists := taskLifecycle[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(transitions))
	for _, trigger := range triggerOrder {
		if _, ok := transitions[trigger]; ok {
			triggers = append(triggers, trigger)
		}
	}

	return triggers
}
