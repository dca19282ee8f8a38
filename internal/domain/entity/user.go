package entity

import "time"

// User is the engine's view of an actor: identity, superuser flag and the
// per-event-class notification preferences. Authentication and sessions are
// handled elsewhere.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`

	// Notification preferences, all default true.
	SubmittedNotifications bool `json:"submitted_notifications"`
	ApprovedNotifications  bool `json:"approved_notifications"`
	RejectedNotifications  bool `json:"rejected_notifications"`

	CreatedAt time.Time `json:"created_at"`
}

// Group is a named set of users referenced by group-approval tasks.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
