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

const userColumns = `id, username, email, is_superuser,
		submitted_notifications, approved_notifications, rejected_notifications,
		created_at`

// UserRepository implements port.IdentityProvider over the local users and
// group tables. In a full deployment this would sit in front of the identity
// service; the engine only needs the read side plus creation for seeding.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// CreateUser inserts a user
func (r *UserRepository) CreateUser(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (username, email, is_superuser,
			submitted_notifications, approved_notifications, rejected_notifications)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		user.Username, user.Email, user.IsSuperuser,
		user.SubmittedNotifications, user.ApprovedNotifications, user.RejectedNotifications)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// CreateGroup inserts a group
func (r *UserRepository) CreateGroup(ctx context.Context, group *entity.Group) error {
	query := `INSERT INTO user_groups (name) VALUES (?)`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, group.Name)
	if err != nil {
		r.logger.Error("Failed to create group", zap.String("name", group.Name), zap.Error(err))
		return fmt.Errorf("failed to create group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	group.ID = id
	return nil
}

// AddMember puts a user into a group
func (r *UserRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	query := `INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, groupID, userID)
	if err != nil {
		r.logger.Error("Failed to add group member",
			zap.Int64("group_id", groupID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, (nil, nil) when unknown
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := r.scanOne(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// IsMember reports whether the user belongs to the group
func (r *UserRepository) IsMember(ctx context.Context, userID, groupID int64) (bool, error) {
	query := `SELECT COUNT(1) FROM group_members WHERE group_id = ? AND user_id = ?`

	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, groupID, userID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check group membership",
			zap.Int64("group_id", groupID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

// GroupMembers returns the users of a group
func (r *UserRepository) GroupMembers(ctx context.Context, groupID int64) ([]*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		JOIN group_members ON group_members.user_id = users.id
		WHERE group_members.group_id = ?
		ORDER BY users.id
	`
	return r.queryMany(ctx, query, groupID)
}

// Superusers returns all superusers
func (r *UserRepository) Superusers(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_superuser = 1 ORDER BY id`
	return r.queryMany(ctx, query)
}

// ListUsers returns all users
func (r *UserRepository) ListUsers(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	return r.queryMany(ctx, query)
}

func (r *UserRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var user entity.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.IsSuperuser,
			&user.SubmittedNotifications,
			&user.ApprovedNotifications,
			&user.RejectedNotifications,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

func (r *UserRepository) scanOne(row *sql.Row) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.IsSuperuser,
		&user.SubmittedNotifications,
		&user.ApprovedNotifications,
		&user.RejectedNotifications,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Verify interface compliance
var _ port.IdentityProvider = (*UserRepository)(nil)
