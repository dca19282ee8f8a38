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

// WorkflowStateRepository implements port.WorkflowStateRepository
type WorkflowStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowStateRepository creates a new workflow state repository
func NewWorkflowStateRepository(db *sql.DB, logger *zap.Logger) port.WorkflowStateRepository {
	return &WorkflowStateRepository{db: db, logger: logger}
}

// Create inserts a new traversal. The partial unique index on
// (page_id) WHERE status = 'IN_PROGRESS' rejects a second open traversal
// for the same page.
func (r *WorkflowStateRepository) Create(ctx context.Context, state *entity.WorkflowState) error {
	query := `
		INSERT INTO workflow_states (page_id, workflow_id, status, requested_by)
		VALUES (?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		state.PageID, state.WorkflowID, state.Status, state.RequestedBy)
	if err != nil {
		r.logger.Error("Failed to create workflow state",
			zap.Int64("page_id", state.PageID),
			zap.Int64("workflow_id", state.WorkflowID),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow state: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	state.ID = id
	return nil
}

// GetByID retrieves a workflow state by ID, (nil, nil) when absent
func (r *WorkflowStateRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowState, error) {
	query := `
		SELECT id, page_id, workflow_id, status, requested_by, created_at, completed_at
		FROM workflow_states
		WHERE id = ?
	`
	return r.queryOne(ctx, query, id)
}

// GetInProgressByPageID returns the page's single open traversal, (nil, nil)
// when the page has none.
func (r *WorkflowStateRepository) GetInProgressByPageID(ctx context.Context, pageID int64) (*entity.WorkflowState, error) {
	query := `
		SELECT id, page_id, workflow_id, status, requested_by, created_at, completed_at
		FROM workflow_states
		WHERE page_id = ? AND status = 'IN_PROGRESS'
	`
	return r.queryOne(ctx, query, pageID)
}

func (r *WorkflowStateRepository) queryOne(ctx context.Context, query string, arg interface{}) (*entity.WorkflowState, error) {
	var state entity.WorkflowState
	var completedAt sql.NullTime
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&state.ID,
		&state.PageID,
		&state.WorkflowID,
		&state.Status,
		&state.RequestedBy,
		&state.CreatedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow state", zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow state: %w", err)
	}
	if completedAt.Valid {
		state.CompletedAt = &completedAt.Time
	}
	return &state, nil
}

// Finish moves the traversal to a terminal status and stamps completion
func (r *WorkflowStateRepository) Finish(ctx context.Context, id int64, status string, completedAt time.Time) error {
	query := `UPDATE workflow_states SET status = ?, completed_at = ? WHERE id = ?`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, completedAt, id)
	if err != nil {
		r.logger.Error("Failed to finish workflow state",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to finish workflow state: %w", err)
	}
	return nil
}

// ListInProgressByWorkflowID returns all open traversals for a workflow
func (r *WorkflowStateRepository) ListInProgressByWorkflowID(ctx context.Context, workflowID int64) ([]*entity.WorkflowState, error) {
	query := `
		SELECT id, page_id, workflow_id, status, requested_by, created_at, completed_at
		FROM workflow_states
		WHERE workflow_id = ? AND status = 'IN_PROGRESS'
		ORDER BY id
	`
	return r.queryMany(ctx, query, workflowID)
}

// List retrieves all workflow states
func (r *WorkflowStateRepository) List(ctx context.Context) ([]*entity.WorkflowState, error) {
	query := `
		SELECT id, page_id, workflow_id, status, requested_by, created_at, completed_at
		FROM workflow_states
		ORDER BY id
	`
	return r.queryMany(ctx, query)
}

func (r *WorkflowStateRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowState, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflow states", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow states: %w", err)
	}
	defer rows.Close()

	var states []*entity.WorkflowState
	for rows.Next() {
		var state entity.WorkflowState
		var completedAt sql.NullTime
		if err := rows.Scan(
			&state.ID,
			&state.PageID,
			&state.WorkflowID,
			&state.Status,
			&state.RequestedBy,
			&state.CreatedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow state: %w", err)
		}
		if completedAt.Valid {
			state.CompletedAt = &completedAt.Time
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// Verify interface compliance
var _ port.WorkflowStateRepository = (*WorkflowStateRepository)(nil)
