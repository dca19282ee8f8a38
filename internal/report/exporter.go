package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/domain/entity"
)

const (
	stateSheet = "Workflow States"
	trailSheet = "Task Trail"
)

// Exporter builds the moderation audit report: every workflow traversal with
// its full task trail, as a spreadsheet.
type Exporter struct {
	workflowRepo  port.WorkflowRepository
	taskRepo      port.TaskRepository
	stateRepo     port.WorkflowStateRepository
	taskStateRepo port.TaskStateRepository
	pages         port.PageProvider
	logger        *zap.Logger
}

// NewExporter creates a new report exporter
func NewExporter(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	stateRepo port.WorkflowStateRepository,
	taskStateRepo port.TaskStateRepository,
	pages port.PageProvider,
	logger *zap.Logger,
) *Exporter {
	return &Exporter{
		workflowRepo:  workflowRepo,
		taskRepo:      taskRepo,
		stateRepo:     stateRepo,
		taskStateRepo: taskStateRepo,
		pages:         pages,
		logger:        logger,
	}
}

// Export builds the workbook. The caller owns the file and must Close it.
func (e *Exporter) Export(ctx context.Context) (*excelize.File, error) {
	states, err := e.stateRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow states: %w", err)
	}

	workflowNames, err := e.workflowNames(ctx)
	if err != nil {
		return nil, err
	}
	taskNames, err := e.taskNames(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", stateSheet)
	if _, err := f.NewSheet(trailSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	e.setRow(f, stateSheet, 1, []interface{}{
		"State ID", "Page", "Workflow", "Status", "Requested By", "Started", "Completed"})
	e.setRow(f, trailSheet, 1, []interface{}{
		"State ID", "Task", "Status", "Acted By", "Comment", "Started", "Finished"})

	stateRow := 2
	trailRow := 2
	for _, state := range states {
		pageTitle, err := e.pageTitle(ctx, state.PageID)
		if err != nil {
			f.Close()
			return nil, err
		}

		e.setRow(f, stateSheet, stateRow, []interface{}{
			state.ID,
			pageTitle,
			workflowNames[state.WorkflowID],
			state.Status,
			state.RequestedBy,
			formatTime(&state.CreatedAt),
			formatTime(state.CompletedAt),
		})
		stateRow++

		trail, err := e.taskStateRepo.ListByWorkflowStateID(ctx, state.ID)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to list task trail: %w", err)
		}
		for _, ts := range trail {
			e.setRow(f, trailSheet, trailRow, []interface{}{
				state.ID,
				taskNames[ts.TaskID],
				ts.Status,
				actedBy(ts),
				ts.Comment,
				formatTime(&ts.StartedAt),
				formatTime(ts.FinishedAt),
			})
			trailRow++
		}
	}

	e.logger.Info("Audit report built",
		zap.Int("workflow_states", len(states)))
	return f, nil
}

func (e *Exporter) workflowNames(ctx context.Context) (map[int64]string, error) {
	workflows, err := e.workflowRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	names := make(map[int64]string, len(workflows))
	for _, w := range workflows {
		names[w.ID] = w.Name
	}
	return names, nil
}

func (e *Exporter) taskNames(ctx context.Context) (map[int64]string, error) {
	tasks, err := e.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	names := make(map[int64]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	return names, nil
}

func (e *Exporter) pageTitle(ctx context.Context, pageID int64) (string, error) {
	page, err := e.pages.GetByID(ctx, pageID)
	if err != nil {
		return "", fmt.Errorf("failed to get page: %w", err)
	}
	if page == nil {
		return fmt.Sprintf("page %d", pageID), nil
	}
	return page.Title, nil
}

func (e *Exporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		e.logger.Warn("Failed to resolve cell", zap.Int("row", row), zap.Error(err))
		return
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		e.logger.Warn("Failed to set sheet row",
			zap.String("sheet", sheet),
			zap.Int("row", row),
			zap.Error(err))
	}
}

func actedBy(ts *entity.TaskState) interface{} {
	if ts.ActedBy == nil {
		return ""
	}
	return *ts.ActedBy
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
