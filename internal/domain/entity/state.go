package entity

import "time"

// WorkflowState is one traversal of a workflow by a page. Terminal rows are
// kept forever as the audit trail; cancellation and rejection are statuses,
// not deletions.
type WorkflowState struct {
	ID          int64      `json:"id"`
	PageID      int64      `json:"page_id"`
	WorkflowID  int64      `json:"workflow_id"`
	Status      string     `json:"status"`
	RequestedBy int64      `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskState records one task's evaluation within a WorkflowState. A row is
// only created when the traversal actually enters the task, so a rejected
// workflow has no rows for the tasks it never reached.
type TaskState struct {
	ID              int64      `json:"id"`
	WorkflowStateID int64      `json:"workflow_state_id"`
	TaskID          int64      `json:"task_id"`
	Status          string     `json:"status"`
	ActedBy         *int64     `json:"acted_by,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
