package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/application/tasktype"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/workflow"
)

// TaskLinkSpec positions a task inside a new workflow definition.
type TaskLinkSpec struct {
	TaskID    int64 `json:"task_id"`
	SortOrder int   `json:"sort_order"`
}

// AdminService owns the definition side of the engine: creating workflows and
// tasks, and the disable/enable coordinator with its cascades into live
// traversals.
type AdminService interface {
	CreateTask(ctx context.Context, name, taskType string, groupID *int64) (*entity.Task, error)
	CreateWorkflow(ctx context.Context, name string, links []TaskLinkSpec) (*entity.Workflow, error)

	// DisableWorkflow deactivates the definition and cancels every
	// IN_PROGRESS traversal of it. Best effort: one traversal's failure
	// never blocks the rest.
	DisableWorkflow(ctx context.Context, workflowID int64) error

	// DisableTask deactivates the task and unblocks every traversal
	// currently waiting on it, recording those task states CANCELLED.
	DisableTask(ctx context.Context, taskID int64) error

	// EnableWorkflow and EnableTask reactivate a definition with no
	// retroactive effect on history.
	EnableWorkflow(ctx context.Context, workflowID int64) error
	EnableTask(ctx context.Context, taskID int64) error
}

type adminServiceImpl struct {
	workflowRepo  port.WorkflowRepository
	taskRepo      port.TaskRepository
	stateRepo     port.WorkflowStateRepository
	taskStateRepo port.TaskStateRepository
	registry      *tasktype.Registry
	txManager     port.TransactionManager
	engine        WorkflowService
	logger        Logger
}

// NewAdminService creates the definition/coordinator service.
func NewAdminService(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	stateRepo port.WorkflowStateRepository,
	taskStateRepo port.TaskStateRepository,
	registry *tasktype.Registry,
	txManager port.TransactionManager,
	engine WorkflowService,
	logger Logger,
) AdminService {
	return &adminServiceImpl{
		workflowRepo:  workflowRepo,
		taskRepo:      taskRepo,
		stateRepo:     stateRepo,
		taskStateRepo: taskStateRepo,
		registry:      registry,
		txManager:     txManager,
		engine:        engine,
		logger:        logger,
	}
}

// CreateTask validates the variant against the registry and persists the task.
func (s *adminServiceImpl) CreateTask(ctx context.Context, name, taskType string, groupID *int64) (*entity.Task, error) {
	if err := s.registry.Validate(taskType); err != nil {
		return nil, err
	}
	if taskType == entity.TaskTypeGroupApproval && groupID == nil {
		return nil, fmt.Errorf("group approval task requires a group")
	}

	task := &entity.Task{
		Name:    name,
		Type:    taskType,
		Active:  true,
		GroupID: groupID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("Task created", "task_id", task.ID, "name", name, "type", taskType)
	return task, nil
}

// CreateWorkflow persists a definition with its ordered task links.
func (s *adminServiceImpl) CreateWorkflow(ctx context.Context, name string, links []TaskLinkSpec) (*entity.Workflow, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("workflow requires at least one task")
	}

	ordered := make([]TaskLinkSpec, len(links))
	copy(ordered, links)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	seenTasks := make(map[int64]bool, len(ordered))
	seenOrders := make(map[int]bool, len(ordered))
	for _, link := range ordered {
		if seenTasks[link.TaskID] {
			return nil, fmt.Errorf("task %d linked more than once", link.TaskID)
		}
		if seenOrders[link.SortOrder] {
			return nil, fmt.Errorf("duplicate sort order %d", link.SortOrder)
		}
		seenTasks[link.TaskID] = true
		seenOrders[link.SortOrder] = true
	}

	var wf *entity.Workflow
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, link := range ordered {
			task, err := s.taskRepo.GetByID(txCtx, link.TaskID)
			if err != nil {
				return fmt.Errorf("get task %d: %w", link.TaskID, err)
			}
			if task == nil {
				return fmt.Errorf("task %d: %w", link.TaskID, workflow.ErrNotFound)
			}
		}

		wf = &entity.Workflow{Name: name, Active: true}
		if err := s.workflowRepo.Create(txCtx, wf); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}
		for _, link := range ordered {
			if err := s.workflowRepo.AddTask(txCtx, &entity.WorkflowTask{
				WorkflowID: wf.ID,
				TaskID:     link.TaskID,
				SortOrder:  link.SortOrder,
			}); err != nil {
				return fmt.Errorf("link task %d: %w", link.TaskID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow created", "workflow_id", wf.ID, "name", name, "tasks", len(ordered))
	return wf, nil
}

// DisableWorkflow flips the flag first so no new submissions slip in, then
// sweeps the live traversals.
func (s *adminServiceImpl) DisableWorkflow(ctx context.Context, workflowID int64) error {
	if err := s.setWorkflowActive(ctx, workflowID, false); err != nil {
		return err
	}

	states, err := s.stateRepo.ListInProgressByWorkflowID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("list in-progress states: %w", err)
	}

	cancelled := 0
	for _, state := range states {
		// Each traversal is cancelled in its own transaction.
		if err := s.engine.CancelWorkflowState(ctx, state.ID); err != nil {
			s.logger.Error("Failed to cancel workflow state during disable",
				"workflow_state_id", state.ID,
				"workflow_id", workflowID,
				"error", err,
			)
			continue
		}
		cancelled++
	}

	s.logger.Info("Workflow disabled", "workflow_id", workflowID, "cancelled_states", cancelled)
	return nil
}

// DisableTask flips the flag, then unblocks every traversal waiting on the
// task: the blocking task state is recorded CANCELLED and the traversal moves
// to the next active task or finalizes, exactly as an approval would.
func (s *adminServiceImpl) DisableTask(ctx context.Context, taskID int64) error {
	if err := s.setTaskActive(ctx, taskID, false); err != nil {
		return err
	}

	taskStates, err := s.taskStateRepo.ListInProgressByTaskID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("list in-progress task states: %w", err)
	}

	resumed := 0
	for _, taskState := range taskStates {
		if err := s.engine.ResumePastTask(ctx, taskState.ID); err != nil {
			s.logger.Error("Failed to resume workflow past disabled task",
				"task_state_id", taskState.ID,
				"task_id", taskID,
				"error", err,
			)
			continue
		}
		resumed++
	}

	s.logger.Info("Task disabled", "task_id", taskID, "resumed_states", resumed)
	return nil
}

func (s *adminServiceImpl) EnableWorkflow(ctx context.Context, workflowID int64) error {
	if err := s.setWorkflowActive(ctx, workflowID, true); err != nil {
		return err
	}
	s.logger.Info("Workflow enabled", "workflow_id", workflowID)
	return nil
}

func (s *adminServiceImpl) EnableTask(ctx context.Context, taskID int64) error {
	if err := s.setTaskActive(ctx, taskID, true); err != nil {
		return err
	}
	s.logger.Info("Task enabled", "task_id", taskID)
	return nil
}

func (s *adminServiceImpl) setWorkflowActive(ctx context.Context, workflowID int64, active bool) error {
	wf, err := s.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return fmt.Errorf("workflow %d: %w", workflowID, workflow.ErrNotFound)
	}
	if err := s.workflowRepo.SetActive(ctx, workflowID, active); err != nil {
		return fmt.Errorf("set workflow active: %w", err)
	}
	return nil
}

func (s *adminServiceImpl) setTaskActive(ctx context.Context, taskID int64, active bool) error {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %d: %w", taskID, workflow.ErrNotFound)
	}
	if err := s.taskRepo.SetActive(ctx, taskID, active); err != nil {
		return fmt.Errorf("set task active: %w", err)
	}
	return nil
}
