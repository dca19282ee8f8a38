package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/contentd/moderation/internal/domain/entity"
)

// Event is a committed transition, carried to the admin UI and the notifier.
// The entity fields hold the records as loaded at emission time; handlers run
// after the triggering transaction has committed and must treat them as
// read-only.
type Event struct {
	ID            string                `json:"id"`
	Type          Type                  `json:"type"`
	Timestamp     time.Time             `json:"timestamp"`
	CorrelationID string                `json:"correlation_id"`
	TriggeredBy   int64                 `json:"triggered_by,omitempty"`
	Page          *entity.Page          `json:"page,omitempty"`
	WorkflowState *entity.WorkflowState `json:"workflow_state,omitempty"`
	TaskState     *entity.TaskState     `json:"task_state,omitempty"`
	Task          *entity.Task          `json:"task,omitempty"`
}

// New creates an event with a fresh ID and correlation ID.
func New(eventType Type, page *entity.Page, ws *entity.WorkflowState) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
		Page:          page,
		WorkflowState: ws,
	}
}

// WithTask attaches the task and task-state snapshots.
func (e *Event) WithTask(task *entity.Task, ts *entity.TaskState) *Event {
	e.Task = task
	e.TaskState = ts
	return e
}

// WithActor records the user whose action produced the event.
func (e *Event) WithActor(userID int64) *Event {
	e.TriggeredBy = userID
	return e
}

// WithCorrelation links the event into an existing correlation chain.
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}
