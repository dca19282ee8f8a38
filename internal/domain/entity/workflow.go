package entity

import "time"

// Workflow is a named, reusable approval pipeline. Pages submitted against a
// workflow traverse its tasks in sort order.
type Workflow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowTask links a task into a workflow at a fixed position. Sort orders
// are unique per workflow and each task appears at most once per workflow;
// equal positions never occur, but traversal still breaks ties by id.
type WorkflowTask struct {
	ID         int64 `json:"id"`
	WorkflowID int64 `json:"workflow_id"`
	TaskID     int64 `json:"task_id"`
	SortOrder  int   `json:"sort_order"`
}
