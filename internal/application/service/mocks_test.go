package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/contentd/moderation/internal/application/dispatcher"
	"github.com/contentd/moderation/internal/application/tasktype"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/event"
)

// In-memory collaborators for engine tests. They mirror the repository
// contracts: getters return (nil, nil) when no row matches, list results come
// back in id order.

type memWorkflowRepo struct {
	workflows  map[int64]*entity.Workflow
	links      []*entity.WorkflowTask
	nextID     int64
	nextLinkID int64
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{workflows: make(map[int64]*entity.Workflow)}
}

func (r *memWorkflowRepo) Create(ctx context.Context, workflow *entity.Workflow) error {
	r.nextID++
	workflow.ID = r.nextID
	r.workflows[workflow.ID] = workflow
	return nil
}

func (r *memWorkflowRepo) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.workflows[id], nil
}

func (r *memWorkflowRepo) SetActive(ctx context.Context, id int64, active bool) error {
	wf, ok := r.workflows[id]
	if !ok {
		return fmt.Errorf("workflow %d not found", id)
	}
	wf.Active = active
	return nil
}

func (r *memWorkflowRepo) List(ctx context.Context) ([]*entity.Workflow, error) {
	out := make([]*entity.Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memWorkflowRepo) AddTask(ctx context.Context, link *entity.WorkflowTask) error {
	r.nextLinkID++
	link.ID = r.nextLinkID
	r.links = append(r.links, link)
	return nil
}

func (r *memWorkflowRepo) ListTaskLinks(ctx context.Context, workflowID int64) ([]*entity.WorkflowTask, error) {
	var out []*entity.WorkflowTask
	for _, link := range r.links {
		if link.WorkflowID == workflowID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memTaskRepo struct {
	tasks  map[int64]*entity.Task
	nextID int64
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[int64]*entity.Task)}
}

func (r *memTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = task
	return nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	return r.tasks[id], nil
}

func (r *memTaskRepo) SetActive(ctx context.Context, id int64, active bool) error {
	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}
	task.Active = active
	return nil
}

func (r *memTaskRepo) List(ctx context.Context) ([]*entity.Task, error) {
	out := make([]*entity.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memStateRepo struct {
	states map[int64]*entity.WorkflowState
	nextID int64
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[int64]*entity.WorkflowState)}
}

func (r *memStateRepo) Create(ctx context.Context, state *entity.WorkflowState) error {
	for _, existing := range r.states {
		if existing.PageID == state.PageID && existing.Status == "IN_PROGRESS" {
			return fmt.Errorf("unique index violation: page %d already in progress", state.PageID)
		}
	}
	r.nextID++
	state.ID = r.nextID
	r.states[state.ID] = state
	return nil
}

func (r *memStateRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowState, error) {
	return r.states[id], nil
}

func (r *memStateRepo) GetInProgressByPageID(ctx context.Context, pageID int64) (*entity.WorkflowState, error) {
	for _, state := range r.states {
		if state.PageID == pageID && state.Status == "IN_PROGRESS" {
			return state, nil
		}
	}
	return nil, nil
}

func (r *memStateRepo) Finish(ctx context.Context, id int64, status string, completedAt time.Time) error {
	state, ok := r.states[id]
	if !ok {
		return fmt.Errorf("workflow state %d not found", id)
	}
	state.Status = status
	state.CompletedAt = &completedAt
	return nil
}

func (r *memStateRepo) ListInProgressByWorkflowID(ctx context.Context, workflowID int64) ([]*entity.WorkflowState, error) {
	var out []*entity.WorkflowState
	for _, state := range r.states {
		if state.WorkflowID == workflowID && state.Status == "IN_PROGRESS" {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memStateRepo) List(ctx context.Context) ([]*entity.WorkflowState, error) {
	out := make([]*entity.WorkflowState, 0, len(r.states))
	for _, state := range r.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTaskStateRepo struct {
	states map[int64]*entity.TaskState
	nextID int64
}

func newMemTaskStateRepo() *memTaskStateRepo {
	return &memTaskStateRepo{states: make(map[int64]*entity.TaskState)}
}

func (r *memTaskStateRepo) Create(ctx context.Context, state *entity.TaskState) error {
	for _, existing := range r.states {
		if existing.WorkflowStateID == state.WorkflowStateID && existing.Status == "IN_PROGRESS" {
			return fmt.Errorf("unique index violation: workflow state %d already has a current task", state.WorkflowStateID)
		}
	}
	r.nextID++
	state.ID = r.nextID
	r.states[state.ID] = state
	return nil
}

func (r *memTaskStateRepo) GetByID(ctx context.Context, id int64) (*entity.TaskState, error) {
	return r.states[id], nil
}

func (r *memTaskStateRepo) GetCurrent(ctx context.Context, workflowStateID int64) (*entity.TaskState, error) {
	for _, state := range r.states {
		if state.WorkflowStateID == workflowStateID && state.Status == "IN_PROGRESS" {
			return state, nil
		}
	}
	return nil, nil
}

func (r *memTaskStateRepo) Finish(ctx context.Context, id int64, status string, actedBy *int64, comment string, finishedAt time.Time) error {
	state, ok := r.states[id]
	if !ok {
		return fmt.Errorf("task state %d not found", id)
	}
	state.Status = status
	state.ActedBy = actedBy
	state.Comment = comment
	state.FinishedAt = &finishedAt
	return nil
}

func (r *memTaskStateRepo) ListByWorkflowStateID(ctx context.Context, workflowStateID int64) ([]*entity.TaskState, error) {
	var out []*entity.TaskState
	for _, state := range r.states {
		if state.WorkflowStateID == workflowStateID {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTaskStateRepo) ListInProgressByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskState, error) {
	var out []*entity.TaskState
	for _, state := range r.states {
		if state.TaskID == taskID && state.Status == "IN_PROGRESS" {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPages struct {
	pages     map[int64]*entity.Page
	published []int64
	nextID    int64
}

func newMemPages() *memPages {
	return &memPages{pages: make(map[int64]*entity.Page)}
}

func (p *memPages) Create(ctx context.Context, page *entity.Page) error {
	p.nextID++
	page.ID = p.nextID
	p.pages[page.ID] = page
	return nil
}

func (p *memPages) GetByID(ctx context.Context, id int64) (*entity.Page, error) {
	return p.pages[id], nil
}

func (p *memPages) Publish(ctx context.Context, id int64) error {
	page, ok := p.pages[id]
	if !ok {
		return fmt.Errorf("page %d not found", id)
	}
	page.Live = true
	page.HasUnpublishedChanges = false
	p.published = append(p.published, id)
	return nil
}

type memIdentity struct {
	users      map[int64]*entity.User
	membership map[int64][]int64
}

func newMemIdentity() *memIdentity {
	return &memIdentity{
		users:      make(map[int64]*entity.User),
		membership: make(map[int64][]int64),
	}
}

func (m *memIdentity) addUser(u *entity.User) *entity.User {
	m.users[u.ID] = u
	return u
}

func (m *memIdentity) addMember(groupID, userID int64) {
	m.membership[groupID] = append(m.membership[groupID], userID)
}

func (m *memIdentity) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *memIdentity) IsMember(ctx context.Context, userID, groupID int64) (bool, error) {
	for _, id := range m.membership[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIdentity) GroupMembers(ctx context.Context, groupID int64) ([]*entity.User, error) {
	var members []*entity.User
	for _, id := range m.membership[groupID] {
		if u, ok := m.users[id]; ok {
			members = append(members, u)
		}
	}
	return members, nil
}

func (m *memIdentity) Superusers(ctx context.Context) ([]*entity.User, error) {
	var supers []*entity.User
	for _, u := range m.users {
		if u.IsSuperuser {
			supers = append(supers, u)
		}
	}
	return supers, nil
}

func (m *memIdentity) ListUsers(ctx context.Context) ([]*entity.User, error) {
	var users []*entity.User
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

// nopTx runs the function directly; the mocks have no transactions.
type nopTx struct{}

func (nopTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recorderDispatcher captures dispatched events synchronously for assertions.
type recorderDispatcher struct {
	events []*event.Event
}

func (d *recorderDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (d *recorderDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.events = append(d.events, evt)
	return nil
}

func (d *recorderDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.events = append(d.events, evt)
}

func (d *recorderDispatcher) Close() error { return nil }

func (d *recorderDispatcher) ofType(eventType event.Type) []*event.Event {
	var out []*event.Event
	for _, evt := range d.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fixture wires the engine and admin service over the in-memory collaborators.
type fixture struct {
	workflowRepo  *memWorkflowRepo
	taskRepo      *memTaskRepo
	stateRepo     *memStateRepo
	taskStateRepo *memTaskStateRepo
	pages         *memPages
	identity      *memIdentity
	registry      *tasktype.Registry
	events        *recorderDispatcher
	engine        WorkflowService
	admin         AdminService
}

func newFixture(finishAction string) *fixture {
	f := &fixture{
		workflowRepo:  newMemWorkflowRepo(),
		taskRepo:      newMemTaskRepo(),
		stateRepo:     newMemStateRepo(),
		taskStateRepo: newMemTaskStateRepo(),
		pages:         newMemPages(),
		identity:      newMemIdentity(),
		registry:      tasktype.NewRegistry(),
		events:        &recorderDispatcher{},
	}
	tasktype.RegisterDefaults(f.registry, f.identity)

	f.engine = NewWorkflowService(
		f.workflowRepo, f.taskRepo, f.stateRepo, f.taskStateRepo,
		f.pages, f.identity, f.registry, nopTx{}, f.events,
		finishAction, nopLogger{},
	)
	f.admin = NewAdminService(
		f.workflowRepo, f.taskRepo, f.stateRepo, f.taskStateRepo,
		f.registry, nopTx{}, f.engine, nopLogger{},
	)
	return f
}

// seedPage creates a draft page
func (f *fixture) seedPage(title string) *entity.Page {
	page := &entity.Page{Title: title, Slug: title, HasUnpublishedChanges: true}
	_ = f.pages.Create(context.Background(), page)
	return page
}

// seedWorkflow creates active simple-approval tasks and links them in order
func (f *fixture) seedWorkflow(name string, taskCount int) (*entity.Workflow, []*entity.Task) {
	ctx := context.Background()
	wf := &entity.Workflow{Name: name, Active: true}
	_ = f.workflowRepo.Create(ctx, wf)

	tasks := make([]*entity.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		task := &entity.Task{
			Name:   fmt.Sprintf("%s step %d", name, i+1),
			Type:   entity.TaskTypeSimple,
			Active: true,
		}
		_ = f.taskRepo.Create(ctx, task)
		_ = f.workflowRepo.AddTask(ctx, &entity.WorkflowTask{
			WorkflowID: wf.ID,
			TaskID:     task.ID,
			SortOrder:  i,
		})
		tasks = append(tasks, task)
	}
	return wf, tasks
}
