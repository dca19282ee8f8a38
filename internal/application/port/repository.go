package port

import (
	"context"
	"time"

	"github.com/contentd/moderation/internal/domain/entity"
)

// WorkflowRepository defines persistence operations for Workflow definitions
// and their ordered task links.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *entity.Workflow) error
	GetByID(ctx context.Context, id int64) (*entity.Workflow, error)
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context) ([]*entity.Workflow, error)

	// AddTask links a task into the workflow at a sort position.
	AddTask(ctx context.Context, link *entity.WorkflowTask) error

	// ListTaskLinks returns the workflow's links ordered by (sort_order, id).
	ListTaskLinks(ctx context.Context, workflowID int64) ([]*entity.WorkflowTask, error)
}

// TaskRepository defines persistence operations for Task definitions.
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context) ([]*entity.Task, error)
}

// WorkflowStateRepository defines persistence operations for WorkflowState.
// Getters return (nil, nil) when no row matches.
type WorkflowStateRepository interface {
	Create(ctx context.Context, state *entity.WorkflowState) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowState, error)

	// GetInProgressByPageID returns the page's single IN_PROGRESS traversal.
	GetInProgressByPageID(ctx context.Context, pageID int64) (*entity.WorkflowState, error)

	// Finish moves the state to a terminal status and stamps completion.
	Finish(ctx context.Context, id int64, status string, completedAt time.Time) error

	// ListInProgressByWorkflowID feeds the disable-workflow cascade.
	ListInProgressByWorkflowID(ctx context.Context, workflowID int64) ([]*entity.WorkflowState, error)

	List(ctx context.Context) ([]*entity.WorkflowState, error)
}

// TaskStateRepository defines persistence operations for TaskState.
// Getters return (nil, nil) when no row matches.
type TaskStateRepository interface {
	Create(ctx context.Context, state *entity.TaskState) error
	GetByID(ctx context.Context, id int64) (*entity.TaskState, error)

	// GetCurrent returns the workflow state's single IN_PROGRESS task state.
	GetCurrent(ctx context.Context, workflowStateID int64) (*entity.TaskState, error)

	// Finish moves the task state to a terminal status, recording the acting
	// user and comment when the transition came from an explicit action.
	Finish(ctx context.Context, id int64, status string, actedBy *int64, comment string, finishedAt time.Time) error

	// ListByWorkflowStateID returns all task states of a traversal in
	// creation order.
	ListByWorkflowStateID(ctx context.Context, workflowStateID int64) ([]*entity.TaskState, error)

	// ListInProgressByTaskID feeds the disable-task cascade.
	ListInProgressByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskState, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
