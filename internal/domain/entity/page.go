package entity

import "time"

// Page is the content item under moderation. Only the fields the engine
// touches are modeled: the live/draft flags flipped by the publish action on
// workflow approval.
type Page struct {
	ID                    int64     `json:"id"`
	Title                 string    `json:"title"`
	Slug                  string    `json:"slug"`
	Live                  bool      `json:"live"`
	HasUnpublishedChanges bool      `json:"has_unpublished_changes"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
