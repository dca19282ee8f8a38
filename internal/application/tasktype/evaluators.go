package tasktype

import (
	"context"
	"fmt"

	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/domain/entity"
)

// SimpleApproval is the trivial variant: any known user may act.
type SimpleApproval struct {
	identity port.IdentityProvider
}

// NewSimpleApproval creates the simple-approval evaluator.
func NewSimpleApproval(identity port.IdentityProvider) *SimpleApproval {
	return &SimpleApproval{identity: identity}
}

func (e *SimpleApproval) CanAct(ctx context.Context, actor *entity.User, task *entity.Task) (bool, error) {
	return actor != nil, nil
}

func (e *SimpleApproval) EligibleActors(ctx context.Context, task *entity.Task) ([]*entity.User, error) {
	return e.identity.ListUsers(ctx)
}

// GroupApproval gates a task on membership of the task's group. Superusers
// may always act.
type GroupApproval struct {
	identity port.IdentityProvider
}

// NewGroupApproval creates the group-approval evaluator.
func NewGroupApproval(identity port.IdentityProvider) *GroupApproval {
	return &GroupApproval{identity: identity}
}

func (e *GroupApproval) CanAct(ctx context.Context, actor *entity.User, task *entity.Task) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.IsSuperuser {
		return true, nil
	}
	if task.GroupID == nil {
		return false, fmt.Errorf("group approval task %d has no group", task.ID)
	}
	return e.identity.IsMember(ctx, actor.ID, *task.GroupID)
}

func (e *GroupApproval) EligibleActors(ctx context.Context, task *entity.Task) ([]*entity.User, error) {
	if task.GroupID == nil {
		return nil, fmt.Errorf("group approval task %d has no group", task.ID)
	}

	members, err := e.identity.GroupMembers(ctx, *task.GroupID)
	if err != nil {
		return nil, err
	}
	superusers, err := e.identity.Superusers(ctx)
	if err != nil {
		return nil, err
	}

	// Superusers can always act; merge them in without duplicating members.
	seen := make(map[int64]bool, len(members))
	actors := make([]*entity.User, 0, len(members)+len(superusers))
	for _, u := range members {
		seen[u.ID] = true
		actors = append(actors, u)
	}
	for _, u := range superusers {
		if !seen[u.ID] {
			actors = append(actors, u)
		}
	}
	return actors, nil
}

// RegisterDefaults wires the built-in variants into a registry.
func RegisterDefaults(registry *Registry, identity port.IdentityProvider) {
	registry.Register(entity.TaskTypeSimple, NewSimpleApproval(identity))
	registry.Register(entity.TaskTypeGroupApproval, NewGroupApproval(identity))
}
