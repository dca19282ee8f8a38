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

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create creates a new workflow definition
func (r *WorkflowRepository) Create(ctx context.Context, workflow *entity.Workflow) error {
	query := `INSERT INTO workflows (name, active) VALUES (?, ?)`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, workflow.Name, workflow.Active)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	workflow.ID = id
	return nil
}

// GetByID retrieves a workflow by ID, (nil, nil) when absent
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	query := `
		SELECT id, name, active, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`

	var workflow entity.Workflow
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Active,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &workflow, nil
}

// SetActive updates the activation flag
func (r *WorkflowRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE workflows SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, active, id)
	if err != nil {
		r.logger.Error("Failed to set workflow active", zap.Int64("id", id), zap.Bool("active", active), zap.Error(err))
		return fmt.Errorf("failed to set workflow active: %w", err)
	}
	return nil
}

// List retrieves all workflow definitions
func (r *WorkflowRepository) List(ctx context.Context) ([]*entity.Workflow, error) {
	query := `
		SELECT id, name, active, created_at, updated_at
		FROM workflows
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		var workflow entity.Workflow
		if err := rows.Scan(
			&workflow.ID,
			&workflow.Name,
			&workflow.Active,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &workflow)
	}
	return workflows, rows.Err()
}

// AddTask links a task into the workflow
func (r *WorkflowRepository) AddTask(ctx context.Context, link *entity.WorkflowTask) error {
	query := `INSERT INTO workflow_tasks (workflow_id, task_id, sort_order) VALUES (?, ?, ?)`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, link.WorkflowID, link.TaskID, link.SortOrder)
	if err != nil {
		r.logger.Error("Failed to add workflow task",
			zap.Int64("workflow_id", link.WorkflowID),
			zap.Int64("task_id", link.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to add workflow task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	link.ID = id
	return nil
}

// ListTaskLinks returns the workflow's task links in traversal order
func (r *WorkflowRepository) ListTaskLinks(ctx context.Context, workflowID int64) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT id, workflow_id, task_id, sort_order
		FROM workflow_tasks
		WHERE workflow_id = ?
		ORDER BY sort_order, id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to list task links", zap.Int64("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to list task links: %w", err)
	}
	defer rows.Close()

	var links []*entity.WorkflowTask
	for rows.Next() {
		var link entity.WorkflowTask
		if err := rows.Scan(&link.ID, &link.WorkflowID, &link.TaskID, &link.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan task link: %w", err)
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
