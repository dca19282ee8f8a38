package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/event"
	"github.com/contentd/moderation/internal/domain/workflow"
)

func TestSubmit_CreatesStateAndFirstTask(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1, Username: "author"})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 2)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusInProgress.String(), state.Status)
	assert.Equal(t, requester.ID, state.RequestedBy)

	current, err := f.taskStateRepo.GetCurrent(context.Background(), state.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, tasks[0].ID, current.TaskID)
	assert.Equal(t, workflow.StatusInProgress.String(), current.Status)

	assert.Len(t, f.events.ofType(event.WorkflowSubmitted), 1)
	assert.Len(t, f.events.ofType(event.TaskSubmitted), 1)
}

func TestSubmit_ConflictOnSecondSubmission(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1, Username: "author"})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)

	_, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	_, err = f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

func TestSubmit_UnknownPageAndWorkflow(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)

	_, err := f.engine.Submit(context.Background(), 999, wf.ID, requester.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = f.engine.Submit(context.Background(), page.ID, 999, requester.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestSubmit_DisabledWorkflowRejected(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)
	require.NoError(t, f.workflowRepo.SetActive(context.Background(), wf.ID, false))

	_, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestAct_ApprovalsRunThePipelineToApproved(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1, Username: "author"})
	moderator := f.identity.addUser(&entity.User{ID: 2, Username: "moderator"})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 3)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	for range tasks {
		_, err := f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionApprove, "looks good")
		require.NoError(t, err)
	}

	final, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved.String(), final.Status)
	require.NotNil(t, final.CompletedAt)

	trail, err := f.taskStateRepo.ListByWorkflowStateID(context.Background(), state.ID)
	require.NoError(t, err)
	require.Len(t, trail, len(tasks))
	for i, ts := range trail {
		assert.Equal(t, tasks[i].ID, ts.TaskID)
		assert.Equal(t, workflow.StatusApproved.String(), ts.Status)
		require.NotNil(t, ts.ActedBy)
		assert.Equal(t, moderator.ID, *ts.ActedBy)
		assert.Equal(t, "looks good", ts.Comment)
	}

	// Post-approval action published the page
	assert.Equal(t, []int64{page.ID}, f.pages.published)
	assert.True(t, page.Live)
	assert.False(t, page.HasUnpublishedChanges)

	assert.Len(t, f.events.ofType(event.TaskApproved), len(tasks))
	assert.Len(t, f.events.ofType(event.WorkflowApproved), 1)
}

func TestAct_RejectEndsTraversalImmediately(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	moderator := f.identity.addUser(&entity.User{ID: 2})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 3)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	_, err = f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionApprove, "")
	require.NoError(t, err)
	acted, err := f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionReject, "not ready")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected.String(), acted.Status)

	final, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected.String(), final.Status)

	// Tasks past the rejection point were never entered
	trail, err := f.taskStateRepo.ListByWorkflowStateID(context.Background(), state.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, tasks[0].ID, trail[0].TaskID)
	assert.Equal(t, tasks[1].ID, trail[1].TaskID)

	// No publish on rejection
	assert.Empty(t, f.pages.published)

	assert.Len(t, f.events.ofType(event.TaskRejected), 1)
	assert.Len(t, f.events.ofType(event.WorkflowRejected), 1)
	assert.Empty(t, f.events.ofType(event.WorkflowApproved))
}

func TestAct_GroupApprovalPermissions(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1, Username: "author"})
	outsider := f.identity.addUser(&entity.User{ID: 2, Username: "editor"})
	member := f.identity.addUser(&entity.User{ID: 3, Username: "moderator"})
	superuser := f.identity.addUser(&entity.User{ID: 4, Username: "admin", IsSuperuser: true})
	f.identity.addMember(10, member.ID)

	ctx := context.Background()
	groupID := int64(10)
	task := &entity.Task{Name: "group review", Type: entity.TaskTypeGroupApproval, Active: true, GroupID: &groupID}
	require.NoError(t, f.taskRepo.Create(ctx, task))
	wf := &entity.Workflow{Name: "gated", Active: true}
	require.NoError(t, f.workflowRepo.Create(ctx, wf))
	require.NoError(t, f.workflowRepo.AddTask(ctx, &entity.WorkflowTask{WorkflowID: wf.ID, TaskID: task.ID, SortOrder: 0}))

	pageOne := f.seedPage("one")
	pageTwo := f.seedPage("two")
	_, err := f.engine.Submit(ctx, pageOne.ID, wf.ID, requester.ID)
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, pageTwo.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	// Non-member is refused and the task state is untouched
	_, err = f.engine.Act(ctx, pageOne.ID, outsider.ID, DecisionApprove, "")
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	// Group member may act
	acted, err := f.engine.Act(ctx, pageOne.ID, member.ID, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved.String(), acted.Status)

	// Superuser may act without membership
	acted, err = f.engine.Act(ctx, pageTwo.ID, superuser.ID, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved.String(), acted.Status)
}

func TestAct_NoWorkflowInProgress(t *testing.T) {
	f := newFixture("publish")
	actor := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")

	_, err := f.engine.Act(context.Background(), page.ID, actor.ID, DecisionApprove, "")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestAct_UnknownDecision(t *testing.T) {
	f := newFixture("publish")
	actor := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)
	_, err := f.engine.Submit(context.Background(), page.ID, wf.ID, actor.ID)
	require.NoError(t, err)

	_, err = f.engine.Act(context.Background(), page.ID, actor.ID, Decision("defer"), "")
	assert.Error(t, err)
}

func TestSubmit_InactiveTasksAreInvisible(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	moderator := f.identity.addUser(&entity.User{ID: 2})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 3)

	// Deactivate the middle task before submission
	require.NoError(t, f.taskRepo.SetActive(context.Background(), tasks[1].ID, false))

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	_, err = f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionApprove, "")
	require.NoError(t, err)
	_, err = f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionApprove, "")
	require.NoError(t, err)

	final, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved.String(), final.Status)

	// No record of any kind for the inactive task
	trail, err := f.taskStateRepo.ListByWorkflowStateID(context.Background(), state.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, tasks[0].ID, trail[0].TaskID)
	assert.Equal(t, tasks[2].ID, trail[1].TaskID)
}

func TestSubmit_AllTasksInactiveApprovesImmediately(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 2)
	for _, task := range tasks {
		require.NoError(t, f.taskRepo.SetActive(context.Background(), task.ID, false))
	}

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	final, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved.String(), final.Status)
	assert.Equal(t, []int64{page.ID}, f.pages.published)
	assert.Len(t, f.events.ofType(event.WorkflowApproved), 1)
}

func TestFinishActionNone_SkipsPublish(t *testing.T) {
	f := newFixture("none")
	requester := f.identity.addUser(&entity.User{ID: 1})
	moderator := f.identity.addUser(&entity.User{ID: 2})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)

	_, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)
	_, err = f.engine.Act(context.Background(), page.ID, moderator.ID, DecisionApprove, "")
	require.NoError(t, err)

	assert.Empty(t, f.pages.published)
	assert.False(t, page.Live)
}

func TestCancelWorkflowState(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 2)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.CancelWorkflowState(context.Background(), state.ID))

	final, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled.String(), final.Status)

	trail, err := f.taskStateRepo.ListByWorkflowStateID(context.Background(), state.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, workflow.StatusCancelled.String(), trail[0].Status)

	// Cancelling a terminal traversal is a no-op
	require.NoError(t, f.engine.CancelWorkflowState(context.Background(), state.ID))
	final, err = f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled.String(), final.Status)
}

func TestCancelWorkflowState_FreesThePageForResubmission(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 1)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.CancelWorkflowState(context.Background(), state.ID))

	_, err = f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	assert.NoError(t, err)
}

func TestResumePastTask_RecordsCancelledAndAdvances(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, tasks := f.seedWorkflow("moderation", 2)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	current, err := f.taskStateRepo.GetCurrent(context.Background(), state.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.ResumePastTask(context.Background(), current.ID))

	trail, err := f.taskStateRepo.ListByWorkflowStateID(context.Background(), state.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, workflow.StatusCancelled.String(), trail[0].Status)
	assert.Nil(t, trail[0].ActedBy)
	assert.Equal(t, tasks[1].ID, trail[1].TaskID)
	assert.Equal(t, workflow.StatusInProgress.String(), trail[1].Status)

	// The workflow itself stays in progress
	ws, err := f.stateRepo.GetByID(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusInProgress.String(), ws.Status)
}

func TestCurrentState(t *testing.T) {
	f := newFixture("publish")
	requester := f.identity.addUser(&entity.User{ID: 1})
	page := f.seedPage("about")
	wf, _ := f.seedWorkflow("moderation", 2)

	_, err := f.engine.CurrentState(context.Background(), page.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	state, err := f.engine.Submit(context.Background(), page.ID, wf.ID, requester.ID)
	require.NoError(t, err)

	detail, err := f.engine.CurrentState(context.Background(), page.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ID, detail.State.ID)
	assert.Len(t, detail.TaskStates, 1)
}
