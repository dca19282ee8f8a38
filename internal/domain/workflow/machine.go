package workflow

import "fmt"

// Machine validates transitions between statuses. It is stateless: callers
// pass the status they re-read under the current transaction, so a stale
// in-memory copy can never authorize a transition.
type Machine struct {
	transitions map[Status]map[Trigger]Status
}

// Builder accumulates the permitted transitions for a Machine.
type Builder struct {
	transitions map[Status]map[Trigger]Status
}

// NewBuilder creates an empty transition table builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[Status]map[Trigger]Status)}
}

// Permit allows trigger to move from one status to another.
func (b *Builder) Permit(from Status, trigger Trigger, to Status) *Builder {
	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger]Status)
	}
	b.transitions[from][trigger] = to
	return b
}

// Build creates an immutable Machine from the accumulated table.
func (b *Builder) Build() *Machine {
	copied := make(map[Status]map[Trigger]Status, len(b.transitions))
	for from, byTrigger := range b.transitions {
		inner := make(map[Trigger]Status, len(byTrigger))
		for trigger, to := range byTrigger {
			inner[trigger] = to
		}
		copied[from] = inner
	}
	return &Machine{transitions: copied}
}

// CanFire returns true if the trigger is permitted from the given status.
func (m *Machine) CanFire(from Status, trigger Trigger) bool {
	_, ok := m.transitions[from][trigger]
	return ok
}

// Fire returns the status reached by applying trigger from the given status.
func (m *Machine) Fire(from Status, trigger Trigger) (Status, error) {
	to, ok := m.transitions[from][trigger]
	if !ok {
		return from, fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// PermittedTriggers returns the triggers that can fire from the given status.
func (m *Machine) PermittedTriggers(from Status) []Trigger {
	byTrigger := m.transitions[from]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// NewWorkflowStateMachine builds the transition table for workflow states:
// IN_PROGRESS resolves to APPROVED, REJECTED or CANCELLED, all terminal.
func NewWorkflowStateMachine() *Machine {
	return NewBuilder().
		Permit(StatusInProgress, TriggerApprove, StatusApproved).
		Permit(StatusInProgress, TriggerReject, StatusRejected).
		Permit(StatusInProgress, TriggerCancel, StatusCancelled).
		Build()
}

// NewTaskStateMachine builds the transition table for task states:
// IN_PROGRESS resolves to APPROVED, REJECTED, SKIPPED or CANCELLED.
func NewTaskStateMachine() *Machine {
	return NewBuilder().
		Permit(StatusInProgress, TriggerApprove, StatusApproved).
		Permit(StatusInProgress, TriggerReject, StatusRejected).
		Permit(StatusInProgress, TriggerSkip, StatusSkipped).
		Permit(StatusInProgress, TriggerCancel, StatusCancelled).
		Build()
}
