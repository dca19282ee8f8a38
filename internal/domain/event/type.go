package event

// Type identifies a domain event class
type Type string

const (
	// Workflow-level events
	WorkflowSubmitted Type = "workflow.submitted"
	WorkflowApproved  Type = "workflow.approved"
	WorkflowRejected  Type = "workflow.rejected"

	// Task-level events
	TaskSubmitted Type = "task.submitted"
	TaskApproved  Type = "task.approved"
	TaskRejected  Type = "task.rejected"
)
