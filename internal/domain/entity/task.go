package entity

import "time"

// Task is one approval step that can be linked into workflows. Behavior is
// polymorphic over Type: the task-type registry resolves Type to the
// capability evaluation for the variant. Variant-specific state lives on the
// base record (GroupID for group approval); a task may belong to many
// workflows.
type Task struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Active    bool      `json:"active"`
	GroupID   *int64    `json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task type identifiers
const (
	TaskTypeSimple        = "simple"
	TaskTypeGroupApproval = "group_approval"
)
