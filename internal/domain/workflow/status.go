package workflow

// Status is a lifecycle state shared by workflow states and task states.
// Workflow states use {IN_PROGRESS, APPROVED, REJECTED, CANCELLED}; task
// states additionally use SKIPPED.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusSkipped    Status = "SKIPPED"
	StatusCancelled  Status = "CANCELLED"
)

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusSkipped:   true,
	StatusCancelled: true,
}

// IsTerminal returns true if no further transitions are allowed from the status.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
