package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/infrastructure/persistence/sqlite"
)

// TaskStateRepository implements port.TaskStateRepository
type TaskStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskStateRepository creates a new task state repository
func NewTaskStateRepository(db *sql.DB, logger *zap.Logger) port.TaskStateRepository {
	return &TaskStateRepository{db: db, logger: logger}
}

// Create inserts a new task state. The partial unique index on
// (workflow_state_id) WHERE status = 'IN_PROGRESS' keeps a traversal from
// holding two open task states at once.
func (r *TaskStateRepository) Create(ctx context.Context, state *entity.TaskState) error {
	query := `
		INSERT INTO task_states (workflow_state_id, task_id, status, comment)
		VALUES (?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		state.WorkflowStateID, state.TaskID, state.Status, state.Comment)
	if err != nil {
		r.logger.Error("Failed to create task state",
			zap.Int64("workflow_state_id", state.WorkflowStateID),
			zap.Int64("task_id", state.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create task state: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	state.ID = id
	return nil
}

// GetByID retrieves a task state by ID, (nil, nil) when absent
func (r *TaskStateRepository) GetByID(ctx context.Context, id int64) (*entity.TaskState, error) {
	query := `
		SELECT id, workflow_state_id, task_id, status, acted_by, comment, started_at, finished_at
		FROM task_states
		WHERE id = ?
	`
	return r.queryOne(ctx, query, id)
}

// GetCurrent returns the traversal's single IN_PROGRESS task state,
// (nil, nil) when none is open.
func (r *TaskStateRepository) GetCurrent(ctx context.Context, workflowStateID int64) (*entity.TaskState, error) {
	query := `
		SELECT id, workflow_state_id, task_id, status, acted_by, comment, started_at, finished_at
		FROM task_states
		WHERE workflow_state_id = ? AND status = 'IN_PROGRESS'
	`
	return r.queryOne(ctx, query, workflowStateID)
}

func (r *TaskStateRepository) queryOne(ctx context.Context, query string, arg interface{}) (*entity.TaskState, error) {
	var state entity.TaskState
	var actedBy sql.NullInt64
	var finishedAt sql.NullTime
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&state.ID,
		&state.WorkflowStateID,
		&state.TaskID,
		&state.Status,
		&actedBy,
		&state.Comment,
		&state.StartedAt,
		&finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task state", zap.Error(err))
		return nil, fmt.Errorf("failed to get task state: %w", err)
	}
	if actedBy.Valid {
		state.ActedBy = &actedBy.Int64
	}
	if finishedAt.Valid {
		state.FinishedAt = &finishedAt.Time
	}
	return &state, nil
}

// Finish moves the task state to a terminal status
func (r *TaskStateRepository) Finish(ctx context.Context, id int64, status string, actedBy *int64, comment string, finishedAt time.Time) error {
	query := `
		UPDATE task_states
		SET status = ?, acted_by = ?, comment = ?, finished_at = ?
		WHERE id = ?
	`

	var actor sql.NullInt64
	if actedBy != nil {
		actor = sql.NullInt64{Int64: *actedBy, Valid: true}
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, actor, comment, finishedAt, id)
	if err != nil {
		r.logger.Error("Failed to finish task state",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to finish task state: %w", err)
	}
	return nil
}

// ListByWorkflowStateID returns all task states of a traversal in creation order
func (r *TaskStateRepository) ListByWorkflowStateID(ctx context.Context, workflowStateID int64) ([]*entity.TaskState, error) {
	query := `
		SELECT id, workflow_state_id, task_id, status, acted_by, comment, started_at, finished_at
		FROM task_states
		WHERE workflow_state_id = ?
		ORDER BY id
	`
	return r.queryMany(ctx, query, workflowStateID)
}

// ListInProgressByTaskID returns every open task state referencing a task
func (r *TaskStateRepository) ListInProgressByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskState, error) {
	query := `
		SELECT id, workflow_state_id, task_id, status, acted_by, comment, started_at, finished_at
		FROM task_states
		WHERE task_id = ? AND status = 'IN_PROGRESS'
		ORDER BY id
	`
	return r.queryMany(ctx, query, taskID)
}

func (r *TaskStateRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.TaskState, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list task states", zap.Error(err))
		return nil, fmt.Errorf("failed to list task states: %w", err)
	}
	defer rows.Close()

	var states []*entity.TaskState
	for rows.Next() {
		var state entity.TaskState
		var actedBy sql.NullInt64
		var finishedAt sql.NullTime
		if err := rows.Scan(
			&state.ID,
			&state.WorkflowStateID,
			&state.TaskID,
			&state.Status,
			&actedBy,
			&state.Comment,
			&state.StartedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task state: %w", err)
		}
		if actedBy.Valid {
			state.ActedBy = &actedBy.Int64
		}
		if finishedAt.Valid {
			state.FinishedAt = &finishedAt.Time
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// Verify interface compliance
var _ port.TaskStateRepository = (*TaskStateRepository)(nil)
