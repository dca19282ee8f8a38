package notification

import (
	"context"
	"fmt"

	"github.com/contentd/moderation/internal/application/dispatcher"
	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/application/tasktype"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/event"
)

// Logger is the minimal key/value logging dependency of the notifier.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config controls recipient selection.
type Config struct {
	// IncludeSuperusers keeps superusers in recipient sets. Default false:
	// superusers can act everywhere and would otherwise drown in mail.
	IncludeSuperusers bool
}

// Notifier turns committed transitions into recipient sets and hands them to
// the mail collaborator. It never fails a transition: every error ends at the
// log.
type Notifier struct {
	registry *tasktype.Registry
	identity port.IdentityProvider
	mail     port.MailSender
	cfg      Config
	logger   Logger
}

// NewNotifier creates a notifier.
func NewNotifier(registry *tasktype.Registry, identity port.IdentityProvider, mail port.MailSender, cfg Config, logger Logger) *Notifier {
	return &Notifier{
		registry: registry,
		identity: identity,
		mail:     mail,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register subscribes the notifier to the event classes it acts on.
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.WorkflowSubmitted, "notifier.workflow-submitted", n.handle)
	d.Subscribe(event.WorkflowApproved, "notifier.workflow-approved", n.handle)
	d.Subscribe(event.WorkflowRejected, "notifier.workflow-rejected", n.handle)
	d.Subscribe(event.TaskSubmitted, "notifier.task-submitted", n.handle)
}

// handle is the single dispatcher entry point; it absorbs every error after
// logging so delivery problems never surface to the transition path.
func (n *Notifier) handle(ctx context.Context, evt *event.Event) error {
	recipients, err := n.Recipients(ctx, evt)
	if err != nil {
		n.logger.Error("Failed to compute notification recipients",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"error", err,
		)
		return nil
	}
	if len(recipients) == 0 {
		return nil
	}

	addresses := make([]string, 0, len(recipients))
	for _, u := range recipients {
		if u.Email != "" {
			addresses = append(addresses, u.Email)
		}
	}
	if len(addresses) == 0 {
		return nil
	}

	subject, body := n.compose(evt)
	if err := n.mail.Send(ctx, addresses, subject, body); err != nil {
		n.logger.Error("Failed to send notification",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"recipients", len(addresses),
			"error", err,
		)
		return nil
	}

	n.logger.Info("Notification sent",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"recipients", len(addresses),
	)
	return nil
}

// Recipients computes the recipient set for an event.
//
// task.submitted: everyone capable of acting on the new current task, minus
// the triggering actor, minus users whose submitted-notifications preference
// is off, minus superusers unless configured in.
//
// workflow.approved / workflow.rejected: the requesting user only, behind the
// matching preference flag and the triggering-actor exclusion.
//
// workflow.submitted: superusers only, and only when they are configured in.
func (n *Notifier) Recipients(ctx context.Context, evt *event.Event) ([]*entity.User, error) {
	switch evt.Type {
	case event.TaskSubmitted:
		return n.taskSubmittedRecipients(ctx, evt)
	case event.WorkflowSubmitted:
		return n.workflowSubmittedRecipients(ctx, evt)
	case event.WorkflowApproved:
		return n.requesterRecipients(ctx, evt, func(u *entity.User) bool { return u.ApprovedNotifications })
	case event.WorkflowRejected:
		return n.requesterRecipients(ctx, evt, func(u *entity.User) bool { return u.RejectedNotifications })
	default:
		return nil, nil
	}
}

func (n *Notifier) taskSubmittedRecipients(ctx context.Context, evt *event.Event) ([]*entity.User, error) {
	if evt.Task == nil {
		return nil, fmt.Errorf("task.submitted event %s has no task snapshot", evt.ID)
	}

	evaluator, err := n.registry.Get(evt.Task.Type)
	if err != nil {
		return nil, err
	}
	candidates, err := evaluator.EligibleActors(ctx, evt.Task)
	if err != nil {
		return nil, err
	}

	recipients := n.filter(candidates, evt.TriggeredBy, func(u *entity.User) bool { return u.SubmittedNotifications })
	return n.withoutSuperusers(recipients), nil
}

func (n *Notifier) workflowSubmittedRecipients(ctx context.Context, evt *event.Event) ([]*entity.User, error) {
	if !n.cfg.IncludeSuperusers {
		return nil, nil
	}
	superusers, err := n.identity.Superusers(ctx)
	if err != nil {
		return nil, err
	}
	return n.filter(superusers, evt.TriggeredBy, func(u *entity.User) bool { return u.SubmittedNotifications }), nil
}

func (n *Notifier) requesterRecipients(ctx context.Context, evt *event.Event, pref func(*entity.User) bool) ([]*entity.User, error) {
	if evt.WorkflowState == nil {
		return nil, fmt.Errorf("event %s has no workflow state snapshot", evt.ID)
	}
	requester, err := n.identity.GetUser(ctx, evt.WorkflowState.RequestedBy)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, nil
	}
	return n.filter([]*entity.User{requester}, evt.TriggeredBy, pref), nil
}

// filter applies the exclusions shared by every event class: the triggering
// actor and users whose preference for this class is off.
func (n *Notifier) filter(users []*entity.User, triggeredBy int64, pref func(*entity.User) bool) []*entity.User {
	recipients := make([]*entity.User, 0, len(users))
	for _, u := range users {
		if u.ID == triggeredBy {
			continue
		}
		if !pref(u) {
			continue
		}
		recipients = append(recipients, u)
	}
	return recipients
}

// withoutSuperusers drops superusers unless they are configured in. The rule
// applies to submitted-class recipient sets only; completion mail reaches a
// superuser requester regardless of the flag.
func (n *Notifier) withoutSuperusers(users []*entity.User) []*entity.User {
	if n.cfg.IncludeSuperusers {
		return users
	}
	kept := make([]*entity.User, 0, len(users))
	for _, u := range users {
		if u.IsSuperuser {
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

func (n *Notifier) compose(evt *event.Event) (subject, body string) {
	title := ""
	if evt.Page != nil {
		title = evt.Page.Title
	}

	switch evt.Type {
	case event.TaskSubmitted:
		taskName := ""
		if evt.Task != nil {
			taskName = evt.Task.Name
		}
		subject = fmt.Sprintf("The page %q has been submitted for approval in task %q", title, taskName)
		body = fmt.Sprintf("The page %q has been submitted for approval in the moderation task %q and is awaiting your review.", title, taskName)
	case event.WorkflowSubmitted:
		subject = fmt.Sprintf("The page %q has been submitted for moderation workflow", title)
		body = fmt.Sprintf("The page %q has been submitted and has entered a moderation workflow.", title)
	case event.WorkflowApproved:
		subject = fmt.Sprintf("The page %q workflow has been approved", title)
		body = fmt.Sprintf("Your page %q has completed moderation and has been approved.", title)
	case event.WorkflowRejected:
		subject = fmt.Sprintf("The page %q workflow has been rejected", title)
		body = fmt.Sprintf("Your page %q has been rejected during moderation.", title)
	}
	return subject, body
}
