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

// PageRepository implements port.PageProvider
type PageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPageRepository creates a new page repository
func NewPageRepository(db *sql.DB, logger *zap.Logger) *PageRepository {
	return &PageRepository{db: db, logger: logger}
}

// Create inserts a new page as an unpublished draft
func (r *PageRepository) Create(ctx context.Context, page *entity.Page) error {
	query := `
		INSERT INTO pages (title, slug, live, has_unpublished_changes)
		VALUES (?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		page.Title, page.Slug, page.Live, page.HasUnpublishedChanges)
	if err != nil {
		r.logger.Error("Failed to create page", zap.String("slug", page.Slug), zap.Error(err))
		return fmt.Errorf("failed to create page: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	page.ID = id
	return nil
}

// GetByID retrieves a page by ID, (nil, nil) when absent
func (r *PageRepository) GetByID(ctx context.Context, id int64) (*entity.Page, error) {
	query := `
		SELECT id, title, slug, live, has_unpublished_changes, created_at, updated_at
		FROM pages
		WHERE id = ?
	`

	var page entity.Page
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&page.ID,
		&page.Title,
		&page.Slug,
		&page.Live,
		&page.HasUnpublishedChanges,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get page", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// Publish takes the page live and clears the draft flag
func (r *PageRepository) Publish(ctx context.Context, id int64) error {
	query := `
		UPDATE pages
		SET live = 1, has_unpublished_changes = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to publish page", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to publish page: %w", err)
	}

	r.logger.Info("Page published", zap.Int64("id", id))
	return nil
}

// Verify interface compliance
var _ port.PageProvider = (*PageRepository)(nil)
