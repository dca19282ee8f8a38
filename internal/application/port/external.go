package port

import (
	"context"

	"github.com/contentd/moderation/internal/domain/entity"
)

// IdentityProvider resolves users, group membership and notification
// preferences. GetUser returns (nil, nil) for unknown users.
type IdentityProvider interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	IsMember(ctx context.Context, userID, groupID int64) (bool, error)
	GroupMembers(ctx context.Context, groupID int64) ([]*entity.User, error)
	Superusers(ctx context.Context) ([]*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
}

// PageProvider is the content-item collaborator. Publish applies the
// post-approval side effects: the page goes live and loses its
// unpublished-changes flag.
type PageProvider interface {
	GetByID(ctx context.Context, id int64) (*entity.Page, error)
	Create(ctx context.Context, page *entity.Page) error
	Publish(ctx context.Context, id int64) error
}

// MailSender delivers a notification. Callers treat failures as
// log-and-continue; a transition is never rolled back for a delivery error.
type MailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}
