package workflow

import "errors"

var (
	// ErrConflict is returned when a submission would create a second
	// IN_PROGRESS workflow state for the same page.
	ErrConflict = errors.New("workflow already in progress")

	// ErrInvalidState is returned when a transition targets a record that is
	// not in the expected state, including double-apply races detected under
	// the transaction.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrPermissionDenied is returned when the actor lacks the capability to
	// act on the current task.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a referenced page, task, workflow or state
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned by the transition machine when a
	// trigger is not permitted from the current status.
	ErrInvalidTransition = errors.New("invalid state transition")
)
