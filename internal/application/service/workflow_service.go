package service

import (
	"context"
	"fmt"
	"time"

	"github.com/contentd/moderation/internal/application/dispatcher"
	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/application/tasktype"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/event"
	"github.com/contentd/moderation/internal/domain/workflow"
)

// FinishActionPublish is the default post-approval action: the page goes live
// when its workflow finalizes as APPROVED.
const FinishActionPublish = "publish"

// Decision is an actor's verdict on the current task.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// WorkflowStateDetail is a traversal with its task trail, for queries and the
// admin surface.
type WorkflowStateDetail struct {
	State      *entity.WorkflowState `json:"state"`
	TaskStates []*entity.TaskState   `json:"task_states"`
}

// WorkflowService runs the workflow/task state machine: submission, actions
// on the current task, advancement, finalization and cancellation.
type WorkflowService interface {
	// Submit starts a traversal of the workflow for the page. Fails with
	// workflow.ErrConflict when the page already has an IN_PROGRESS
	// traversal.
	Submit(ctx context.Context, pageID, workflowID, requestedBy int64) (*entity.WorkflowState, error)

	// Act applies the actor's decision to the page's current task.
	Act(ctx context.Context, pageID, actorID int64, decision Decision, comment string) (*entity.TaskState, error)

	// CancelWorkflowState cancels a traversal and its current task state.
	// Cancelling an already-terminal traversal is a no-op.
	CancelWorkflowState(ctx context.Context, workflowStateID int64) error

	// ResumePastTask cancels an in-progress task state and advances its
	// traversal as if the task had been approved, recording CANCELLED. Used
	// by the disable-task cascade only.
	ResumePastTask(ctx context.Context, taskStateID int64) error

	// CurrentState returns the page's IN_PROGRESS traversal with its task
	// trail, or workflow.ErrNotFound when there is none.
	CurrentState(ctx context.Context, pageID int64) (*WorkflowStateDetail, error)
}

type workflowServiceImpl struct {
	workflowRepo  port.WorkflowRepository
	taskRepo      port.TaskRepository
	stateRepo     port.WorkflowStateRepository
	taskStateRepo port.TaskStateRepository
	pages         port.PageProvider
	identity      port.IdentityProvider
	registry      *tasktype.Registry
	txManager     port.TransactionManager
	events        dispatcher.Dispatcher
	wsMachine     *workflow.Machine
	tsMachine     *workflow.Machine
	finishAction  string
	logger        Logger
}

// NewWorkflowService creates the workflow engine. finishAction names the
// post-approval action; only "publish" has a built-in effect.
func NewWorkflowService(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	stateRepo port.WorkflowStateRepository,
	taskStateRepo port.TaskStateRepository,
	pages port.PageProvider,
	identity port.IdentityProvider,
	registry *tasktype.Registry,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	finishAction string,
	logger Logger,
) WorkflowService {
	if finishAction == "" {
		finishAction = FinishActionPublish
	}
	return &workflowServiceImpl{
		workflowRepo:  workflowRepo,
		taskRepo:      taskRepo,
		stateRepo:     stateRepo,
		taskStateRepo: taskStateRepo,
		pages:         pages,
		identity:      identity,
		registry:      registry,
		txManager:     txManager,
		events:        events,
		wsMachine:     workflow.NewWorkflowStateMachine(),
		tsMachine:     workflow.NewTaskStateMachine(),
		finishAction:  finishAction,
		logger:        logger,
	}
}

// Submit creates the WorkflowState and enters the first eligible task.
func (s *workflowServiceImpl) Submit(ctx context.Context, pageID, workflowID, requestedBy int64) (*entity.WorkflowState, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	if page == nil {
		return nil, fmt.Errorf("page %d: %w", pageID, workflow.ErrNotFound)
	}

	wf, err := s.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, workflow.ErrNotFound)
	}
	if !wf.Active {
		return nil, fmt.Errorf("workflow %d is disabled: %w", workflowID, workflow.ErrInvalidState)
	}

	var state *entity.WorkflowState
	var pending []*event.Event

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// The uniqueness invariant is checked under the transaction; the
		// partial unique index backs it up against concurrent submitters.
		existing, err := s.stateRepo.GetInProgressByPageID(txCtx, pageID)
		if err != nil {
			return fmt.Errorf("check in-progress state: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("page %d: %w", pageID, workflow.ErrConflict)
		}

		state = &entity.WorkflowState{
			PageID:      pageID,
			WorkflowID:  workflowID,
			Status:      workflow.StatusInProgress.String(),
			RequestedBy: requestedBy,
			CreatedAt:   time.Now(),
		}
		if err := s.stateRepo.Create(txCtx, state); err != nil {
			return fmt.Errorf("create workflow state: %w", err)
		}

		submitted := event.New(event.WorkflowSubmitted, page, state).WithActor(requestedBy)
		pending = append(pending, submitted)

		followups, err := s.enterNextTask(txCtx, page, state, 0, submitted.CorrelationID, requestedBy)
		if err != nil {
			return err
		}
		pending = append(pending, followups...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow submitted",
		"workflow_state_id", state.ID,
		"page_id", pageID,
		"workflow_id", workflowID,
		"requested_by", requestedBy,
	)
	s.dispatch(ctx, pending)
	return state, nil
}

// Act validates permission and state, applies the decision and either
// advances or rejects the traversal.
func (s *workflowServiceImpl) Act(ctx context.Context, pageID, actorID int64, decision Decision, comment string) (*entity.TaskState, error) {
	var trigger workflow.Trigger
	switch decision {
	case DecisionApprove:
		trigger = workflow.TriggerApprove
	case DecisionReject:
		trigger = workflow.TriggerReject
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	actor, err := s.identity.GetUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if actor == nil {
		return nil, fmt.Errorf("user %d: %w", actorID, workflow.ErrNotFound)
	}

	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	if page == nil {
		return nil, fmt.Errorf("page %d: %w", pageID, workflow.ErrNotFound)
	}

	var acted *entity.TaskState
	var pending []*event.Event

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, err := s.stateRepo.GetInProgressByPageID(txCtx, pageID)
		if err != nil {
			return fmt.Errorf("get workflow state: %w", err)
		}
		if state == nil {
			return fmt.Errorf("page %d has no workflow in progress: %w", pageID, workflow.ErrNotFound)
		}

		taskState, err := s.taskStateRepo.GetCurrent(txCtx, state.ID)
		if err != nil {
			return fmt.Errorf("get current task state: %w", err)
		}
		if taskState == nil {
			return fmt.Errorf("workflow state %d has no current task: %w", state.ID, workflow.ErrInvalidState)
		}

		// Status re-read under the transaction guards the single-transition
		// invariant against racing actors.
		nextStatus, err := s.tsMachine.Fire(workflow.Status(taskState.Status), trigger)
		if err != nil {
			return fmt.Errorf("task state %d: %w", taskState.ID, workflow.ErrInvalidState)
		}

		task, err := s.taskRepo.GetByID(txCtx, taskState.TaskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		if task == nil {
			return fmt.Errorf("task %d: %w", taskState.TaskID, workflow.ErrNotFound)
		}

		evaluator, err := s.registry.Get(task.Type)
		if err != nil {
			return err
		}
		allowed, err := evaluator.CanAct(txCtx, actor, task)
		if err != nil {
			return fmt.Errorf("evaluate capability: %w", err)
		}
		if !allowed {
			return fmt.Errorf("user %d cannot act on task %d: %w", actorID, task.ID, workflow.ErrPermissionDenied)
		}

		now := time.Now()
		if err := s.taskStateRepo.Finish(txCtx, taskState.ID, nextStatus.String(), &actor.ID, comment, now); err != nil {
			return fmt.Errorf("finish task state: %w", err)
		}
		taskState.Status = nextStatus.String()
		taskState.ActedBy = &actor.ID
		taskState.Comment = comment
		taskState.FinishedAt = &now
		acted = taskState

		if decision == DecisionApprove {
			approved := event.New(event.TaskApproved, page, state).WithTask(task, taskState).WithActor(actorID)
			pending = append(pending, approved)

			followups, err := s.enterNextTask(txCtx, page, state, task.ID, approved.CorrelationID, actorID)
			if err != nil {
				return err
			}
			pending = append(pending, followups...)
			return nil
		}

		// Reject ends the traversal immediately; later tasks are never
		// entered.
		rejected := event.New(event.TaskRejected, page, state).WithTask(task, taskState).WithActor(actorID)
		pending = append(pending, rejected)

		if _, err := s.wsMachine.Fire(workflow.Status(state.Status), workflow.TriggerReject); err != nil {
			return fmt.Errorf("workflow state %d: %w", state.ID, workflow.ErrInvalidState)
		}
		if err := s.stateRepo.Finish(txCtx, state.ID, workflow.StatusRejected.String(), now); err != nil {
			return fmt.Errorf("finish workflow state: %w", err)
		}
		state.Status = workflow.StatusRejected.String()
		state.CompletedAt = &now

		pending = append(pending,
			event.New(event.WorkflowRejected, page, state).WithActor(actorID).WithCorrelation(rejected.CorrelationID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task acted on",
		"task_state_id", acted.ID,
		"page_id", pageID,
		"actor_id", actorID,
		"decision", string(decision),
	)
	s.dispatch(ctx, pending)
	return acted, nil
}

// CancelWorkflowState cancels a traversal; terminal traversals are left alone.
func (s *workflowServiceImpl) CancelWorkflowState(ctx context.Context, workflowStateID int64) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, err := s.stateRepo.GetByID(txCtx, workflowStateID)
		if err != nil {
			return fmt.Errorf("get workflow state: %w", err)
		}
		if state == nil {
			return fmt.Errorf("workflow state %d: %w", workflowStateID, workflow.ErrNotFound)
		}
		if workflow.Status(state.Status).IsTerminal() {
			// Idempotent by design of the cascade: repeated cancels are no-ops.
			return nil
		}

		now := time.Now()
		if err := s.stateRepo.Finish(txCtx, state.ID, workflow.StatusCancelled.String(), now); err != nil {
			return fmt.Errorf("finish workflow state: %w", err)
		}

		current, err := s.taskStateRepo.GetCurrent(txCtx, state.ID)
		if err != nil {
			return fmt.Errorf("get current task state: %w", err)
		}
		if current != nil {
			if err := s.taskStateRepo.Finish(txCtx, current.ID, workflow.StatusCancelled.String(), nil, "", now); err != nil {
				return fmt.Errorf("finish task state: %w", err)
			}
		}

		s.logger.Info("Workflow state cancelled", "workflow_state_id", state.ID, "page_id", state.PageID)
		return nil
	})
}

// ResumePastTask is the disable-task cascade step: the blocking task state is
// recorded CANCELLED and the traversal advances exactly as an approval would.
func (s *workflowServiceImpl) ResumePastTask(ctx context.Context, taskStateID int64) error {
	var pending []*event.Event

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		taskState, err := s.taskStateRepo.GetByID(txCtx, taskStateID)
		if err != nil {
			return fmt.Errorf("get task state: %w", err)
		}
		if taskState == nil {
			return fmt.Errorf("task state %d: %w", taskStateID, workflow.ErrNotFound)
		}
		if workflow.Status(taskState.Status).IsTerminal() {
			// Raced with an approval or another cascade; nothing to do.
			return nil
		}

		now := time.Now()
		if err := s.taskStateRepo.Finish(txCtx, taskState.ID, workflow.StatusCancelled.String(), nil, "", now); err != nil {
			return fmt.Errorf("finish task state: %w", err)
		}

		state, err := s.stateRepo.GetByID(txCtx, taskState.WorkflowStateID)
		if err != nil {
			return fmt.Errorf("get workflow state: %w", err)
		}
		if state == nil || workflow.Status(state.Status).IsTerminal() {
			return nil
		}

		page, err := s.pages.GetByID(txCtx, state.PageID)
		if err != nil {
			return fmt.Errorf("get page: %w", err)
		}

		followups, err := s.enterNextTask(txCtx, page, state, taskState.TaskID, "", 0)
		if err != nil {
			return err
		}
		pending = append(pending, followups...)
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, pending)
	return nil
}

// CurrentState returns the page's in-flight traversal with its task trail.
func (s *workflowServiceImpl) CurrentState(ctx context.Context, pageID int64) (*WorkflowStateDetail, error) {
	state, err := s.stateRepo.GetInProgressByPageID(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("get workflow state: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("page %d has no workflow in progress: %w", pageID, workflow.ErrNotFound)
	}

	taskStates, err := s.taskStateRepo.ListByWorkflowStateID(ctx, state.ID)
	if err != nil {
		return nil, fmt.Errorf("list task states: %w", err)
	}
	return &WorkflowStateDetail{State: state, TaskStates: taskStates}, nil
}

// enterNextTask creates a task state for the first active task strictly after
// afterTaskID's sort position (afterTaskID 0 starts from the beginning), or
// finalizes the traversal as APPROVED when the pipeline is exhausted.
// Inactive tasks are invisible to the traversal: no record of any kind is
// written for them. Must run inside the caller's transaction.
func (s *workflowServiceImpl) enterNextTask(ctx context.Context, page *entity.Page, state *entity.WorkflowState, afterTaskID int64, correlationID string, actorID int64) ([]*event.Event, error) {
	links, err := s.workflowRepo.ListTaskLinks(ctx, state.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("list task links: %w", err)
	}

	afterSortOrder := -1
	if afterTaskID != 0 {
		afterSortOrder = sortOrderOf(links, afterTaskID)
	}

	for _, link := range links {
		if link.SortOrder <= afterSortOrder {
			continue
		}
		task, err := s.taskRepo.GetByID(ctx, link.TaskID)
		if err != nil {
			return nil, fmt.Errorf("get task %d: %w", link.TaskID, err)
		}
		if task == nil || !task.Active {
			continue
		}

		taskState := &entity.TaskState{
			WorkflowStateID: state.ID,
			TaskID:          task.ID,
			Status:          workflow.StatusInProgress.String(),
			StartedAt:       time.Now(),
		}
		if err := s.taskStateRepo.Create(ctx, taskState); err != nil {
			return nil, fmt.Errorf("create task state: %w", err)
		}

		evt := event.New(event.TaskSubmitted, page, state).WithTask(task, taskState).WithActor(actorID)
		if correlationID != "" {
			evt.WithCorrelation(correlationID)
		}
		return []*event.Event{evt}, nil
	}

	// Pipeline exhausted: finalize and run the post-approval action.
	if _, err := s.wsMachine.Fire(workflow.Status(state.Status), workflow.TriggerApprove); err != nil {
		return nil, fmt.Errorf("workflow state %d: %w", state.ID, workflow.ErrInvalidState)
	}
	now := time.Now()
	if err := s.stateRepo.Finish(ctx, state.ID, workflow.StatusApproved.String(), now); err != nil {
		return nil, fmt.Errorf("finish workflow state: %w", err)
	}
	state.Status = workflow.StatusApproved.String()
	state.CompletedAt = &now

	if s.finishAction == FinishActionPublish {
		if err := s.pages.Publish(ctx, state.PageID); err != nil {
			return nil, fmt.Errorf("publish page %d: %w", state.PageID, err)
		}
		if page != nil {
			page.Live = true
			page.HasUnpublishedChanges = false
		}
	} else {
		s.logger.Info("Skipping post-approval action", "action", s.finishAction, "page_id", state.PageID)
	}

	evt := event.New(event.WorkflowApproved, page, state).WithActor(actorID)
	if correlationID != "" {
		evt.WithCorrelation(correlationID)
	}
	return []*event.Event{evt}, nil
}

// dispatch fans out events after the transaction has committed. Async by
// design: a slow notification handler never holds a transition's lock.
func (s *workflowServiceImpl) dispatch(ctx context.Context, events []*event.Event) {
	for _, evt := range events {
		s.events.DispatchAsync(ctx, evt)
	}
}

// sortOrderOf returns the sort order of taskID within the ordered links, or
// -1 when absent.
func sortOrderOf(links []*entity.WorkflowTask, taskID int64) int {
	for _, link := range links {
		if link.TaskID == taskID {
			return link.SortOrder
		}
	}
	return -1
}
