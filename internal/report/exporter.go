package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

const pendingSheetName = "Pending Tasks"

var pendingHeaders = []string{
	"Task ID",
	"Task Name",
	"Entity Type",
	"Entity ID",
	"Assigned To",
	"Due Date",
	"Created At",
}

// PendingTaskExporter renders a user's pending inbox as an xlsx workbook.
type PendingTaskExporter struct {
	logger *zap.Logger
}

// NewPendingTaskExporter creates a new xlsx exporter.
func NewPendingTaskExporter(logger *zap.Logger) *PendingTaskExporter {
	return &PendingTaskExporter{logger: logger}
}

// Export writes the workbook to w. Tasks are written in the order given,
// so callers should pass an already-sorted inbox.
func (e *PendingTaskExporter) Export(w io.Writer, userID string, tasks []*entity.ApprovalTask) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(pendingSheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range pendingHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(pendingSheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, task := range tasks {
		row := i + 2
		values := []interface{}{
			task.ID,
			task.TaskName,
			task.EntityType,
			task.EntityID,
			task.AssignedToUserID,
			formatDate(task.DueDate),
			task.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(pendingSheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Exported pending task report",
		zap.String("user_id", userID),
		zap.Int("task_count", len(tasks)))
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
