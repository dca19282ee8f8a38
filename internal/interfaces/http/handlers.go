package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contentd/moderation/internal/application/service"
	"github.com/contentd/moderation/internal/domain/entity"
	"github.com/contentd/moderation/internal/domain/workflow"
	"github.com/contentd/moderation/internal/infrastructure/persistence/repository"
	"github.com/contentd/moderation/internal/report"
	"github.com/contentd/moderation/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   service.WorkflowService
	admin    service.AdminService
	pages    *repository.PageRepository
	users    *repository.UserRepository
	exporter *report.Exporter
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine service.WorkflowService,
	admin service.AdminService,
	pages *repository.PageRepository,
	users *repository.UserRepository,
	exporter *report.Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:   engine,
		admin:    admin,
		pages:    pages,
		users:    users,
		exporter: exporter,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreatePageRequest represents the page creation payload
type CreatePageRequest struct {
	Title string `json:"title" binding:"required"`
	Slug  string `json:"slug" binding:"required"`
}

// SubmitRequest represents the moderation submission payload
type SubmitRequest struct {
	WorkflowID  int64 `json:"workflow_id" binding:"required"`
	RequestedBy int64 `json:"requested_by" binding:"required"`
}

// ActionRequest represents an actor's decision on the current task
type ActionRequest struct {
	ActorID  int64  `json:"actor_id" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// CreateTaskRequest represents the task creation payload
type CreateTaskRequest struct {
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type" binding:"required"`
	GroupID *int64 `json:"group_id"`
}

// CreateWorkflowRequest represents the workflow creation payload
type CreateWorkflowRequest struct {
	Name  string                 `json:"name" binding:"required"`
	Tasks []service.TaskLinkSpec `json:"tasks" binding:"required"`
}

// CreateUserRequest represents the user seeding payload
type CreateUserRequest struct {
	Username               string `json:"username" binding:"required"`
	Email                  string `json:"email" binding:"required"`
	IsSuperuser            bool   `json:"is_superuser"`
	SubmittedNotifications *bool  `json:"submitted_notifications"`
	ApprovedNotifications  *bool  `json:"approved_notifications"`
	RejectedNotifications  *bool  `json:"rejected_notifications"`
}

// CreateGroupRequest represents the group creation payload
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddMemberRequest represents the group membership payload
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreatePage handles POST /api/pages
func (h *Handlers) CreatePage(c *gin.Context) {
	var req CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if err := utils.ValidateSlug(req.Slug); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	page := &entity.Page{
		Title:                 utils.SanitizeString(req.Title),
		Slug:                  req.Slug,
		HasUnpublishedChanges: true,
	}
	if err := h.pages.Create(c.Request.Context(), page); err != nil {
		h.fail(c, "failed to create page", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: page})
}

// GetPage handles GET /api/pages/:id
func (h *Handlers) GetPage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	page, err := h.pages.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get page", err)
		return
	}
	if page == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "page not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// SubmitForModeration handles POST /api/pages/:id/submit
func (h *Handlers) SubmitForModeration(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	state, err := h.engine.Submit(c.Request.Context(), id, req.WorkflowID, req.RequestedBy)
	if err != nil {
		h.fail(c, "failed to submit page for moderation", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: state})
}

// ActOnTask handles POST /api/pages/:id/action
func (h *Handlers) ActOnTask(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	taskState, err := h.engine.Act(c.Request.Context(), id, req.ActorID, service.Decision(req.Decision), req.Comment)
	if err != nil {
		h.fail(c, "failed to act on task", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: taskState})
}

// CurrentWorkflowState handles GET /api/pages/:id/workflow-state
func (h *Handlers) CurrentWorkflowState(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	detail, err := h.engine.CurrentState(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get workflow state", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	task, err := h.admin.CreateTask(c.Request.Context(), req.Name, req.Type, req.GroupID)
	if err != nil {
		h.fail(c, "failed to create task", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	wf, err := h.admin.CreateWorkflow(c.Request.Context(), req.Name, req.Tasks)
	if err != nil {
		h.fail(c, "failed to create workflow", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// DisableWorkflow handles POST /api/workflows/:id/disable
func (h *Handlers) DisableWorkflow(c *gin.Context) {
	h.toggle(c, h.admin.DisableWorkflow, "failed to disable workflow")
}

// EnableWorkflow handles POST /api/workflows/:id/enable
func (h *Handlers) EnableWorkflow(c *gin.Context) {
	h.toggle(c, h.admin.EnableWorkflow, "failed to enable workflow")
}

// DisableTask handles POST /api/tasks/:id/disable
func (h *Handlers) DisableTask(c *gin.Context) {
	h.toggle(c, h.admin.DisableTask, "failed to disable task")
}

// EnableTask handles POST /api/tasks/:id/enable
func (h *Handlers) EnableTask(c *gin.Context) {
	h.toggle(c, h.admin.EnableTask, "failed to enable task")
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	user := &entity.User{
		Username:               req.Username,
		Email:                  req.Email,
		IsSuperuser:            req.IsSuperuser,
		SubmittedNotifications: boolOrDefault(req.SubmittedNotifications, true),
		ApprovedNotifications:  boolOrDefault(req.ApprovedNotifications, true),
		RejectedNotifications:  boolOrDefault(req.RejectedNotifications, true),
	}
	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		h.fail(c, "failed to create user", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// CreateGroup handles POST /api/groups
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	group := &entity.Group{Name: req.Name}
	if err := h.users.CreateGroup(c.Request.Context(), group); err != nil {
		h.fail(c, "failed to create group", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: group})
}

// AddGroupMember handles POST /api/groups/:id/members
func (h *Handlers) AddGroupMember(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	if err := h.users.AddMember(c.Request.Context(), id, req.UserID); err != nil {
		h.fail(c, "failed to add group member", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// DownloadReport handles GET /api/reports/workflows
func (h *Handlers) DownloadReport(c *gin.Context) {
	f, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to build report", err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("moderation-report-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream report", "error", err)
	}
}

func (h *Handlers) toggle(c *gin.Context, fn func(ctx context.Context, id int64) error, errMsg string) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), id); err != nil {
		h.fail(c, errMsg, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid path ID", "id", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid ID"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps domain sentinel errors onto HTTP status codes
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusBadRequest
	}

	h.logger.Error(msg, "path", c.Request.URL.Path, "status", status, "error", err)
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// boolOrDefault returns *v when set, otherwise def.
func boolOrDefault(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}
