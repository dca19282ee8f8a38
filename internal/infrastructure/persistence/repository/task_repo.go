package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create creates a new task definition
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `INSERT INTO tasks (name, task_type, active, group_id) VALUES (?, ?, ?, ?)`

	var groupID sql.NullInt64
	if task.GroupID != nil {
		groupID = sql.NullInt64{Int64: *task.GroupID, Valid: true}
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		task.Name, task.Type, task.Active, groupID)
	if err != nil {
		r.logger.Error("Failed to create task", zap.String("name", task.Name), zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	return nil
}

// GetByID retrieves a task by ID, (nil, nil) when absent
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `
		SELECT id, name, task_type, active, group_id, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`

	var task entity.Task
	var groupID sql.NullInt64
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&task.Active,
		&groupID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if groupID.Valid {
		task.GroupID = &groupID.Int64
	}
	return &task, nil
}

// SetActive updates the activation flag
func (r *TaskRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE tasks SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, active, id)
	if err != nil {
		r.logger.Error("Failed to set task active", zap.Int64("id", id), zap.Bool("active", active), zap.Error(err))
		return fmt.Errorf("failed to set task active: %w", err)
	}
	return nil
}

// List retrieves all task definitions
func (r *TaskRepository) List(ctx context.Context) ([]*entity.Task, error) {
	query := `
		SELECT id, name, task_type, active, group_id, created_at, updated_at
		FROM tasks
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		var task entity.Task
		var groupID sql.NullInt64
		if err := rows.Scan(
			&task.ID,
			&task.Name,
			&task.Type,
			&task.Active,
			&groupID,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if groupID.Valid {
			task.GroupID = &groupID.Int64
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
