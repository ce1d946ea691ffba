package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"go.uber.org/zap"
)

const taskColumns = `id, tenant_id, workflow_instance_id, task_name, description,
	assigned_to_user_id, assigned_to_role_name, entity_type, entity_id,
	status, comment, due_date, completed_at, completed_by_user_id,
	version, created_at, updated_at`

// TaskRepository handles approval task database operations
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

var _ port.TaskRepository = (*TaskRepository)(nil)

// Create persists a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.ApprovalTask) error {
	query := `
		INSERT INTO approval_tasks (
			id, tenant_id, workflow_instance_id, task_name, description,
			assigned_to_user_id, assigned_to_role_name, entity_type, entity_id,
			status, comment, due_date, completed_at, completed_by_user_id,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.TenantID,
		task.WorkflowInstanceID,
		task.TaskName,
		nullString(task.Description),
		task.AssignedToUserID,
		nullString(task.AssignedToRoleName),
		nullString(task.EntityType),
		nullString(task.EntityID),
		task.Status.String(),
		nullString(task.Comment),
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
		nullString(task.CompletedByUserID),
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.String("task_id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by its ID within the tenant scope
func (r *TaskRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_tasks WHERE id = ? AND tenant_id = ?`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID", zap.String("task_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// Update persists a mutated task guarded by its version token. The WHERE
// clause on version is what serializes racing finalizers: the loser matches
// zero rows and gets ErrStaleTask.
func (r *TaskRepository) Update(ctx context.Context, task *entity.ApprovalTask) error {
	query := `
		UPDATE approval_tasks
		SET status = ?, comment = ?, completed_at = ?, completed_by_user_id = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND tenant_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		task.Status.String(),
		nullString(task.Comment),
		nullTime(task.CompletedAt),
		nullString(task.CompletedByUserID),
		task.UpdatedAt,
		task.ID,
		task.TenantID,
		task.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update task", zap.String("task_id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, task.TenantID, task.ID); err != nil {
			return err
		}
		r.logger.Info("Stale task update rejected",
			zap.String("task_id", task.ID),
			zap.Int64("version", task.Version))
		return port.ErrStaleTask
	}

	task.Version++
	return nil
}

// ListPendingByAssignees retrieves all Pending tasks assigned to any of the
// given users, dated tasks first by due date, then by creation time
func (r *TaskRepository) ListPendingByAssignees(ctx context.Context, tenantID string, userIDs []string) ([]*entity.ApprovalTask, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(userIDs)-1) + "?"
	query := fmt.Sprintf(`
		SELECT %s FROM approval_tasks
		WHERE tenant_id = ? AND status = ? AND assigned_to_user_id IN (%s)
		ORDER BY due_date IS NULL, due_date, created_at
	`, taskColumns, placeholders)

	args := make([]interface{}, 0, len(userIDs)+2)
	args = append(args, tenantID, workflow.StatePending.String())
	for _, userID := range userIDs {
		args = append(args, userID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list pending tasks", zap.Strings("user_ids", userIDs), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListByWorkflowInstance retrieves all tasks correlated to an external
// workflow instance, ordered by creation time
func (r *TaskRepository) ListByWorkflowInstance(ctx context.Context, tenantID, workflowInstanceID string) ([]*entity.ApprovalTask, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_tasks
		WHERE tenant_id = ? AND workflow_instance_id = ?
		ORDER BY created_at
	`, taskColumns)

	rows, err := r.db.QueryContext(ctx, query, tenantID, workflowInstanceID)
	if err != nil {
		r.logger.Error("Failed to list tasks by workflow instance",
			zap.String("workflow_instance_id", workflowInstanceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s scanner) (*entity.ApprovalTask, error) {
	var task entity.ApprovalTask
	var status string
	var description, roleName, entityType, entityID, comment, completedBy sql.NullString
	var dueDate, completedAt sql.NullTime

	err := s.Scan(
		&task.ID,
		&task.TenantID,
		&task.WorkflowInstanceID,
		&task.TaskName,
		&description,
		&task.AssignedToUserID,
		&roleName,
		&entityType,
		&entityID,
		&status,
		&comment,
		&dueDate,
		&completedAt,
		&completedBy,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = workflow.State(status)
	task.Description = description.String
	task.AssignedToRoleName = roleName.String
	task.EntityType = entityType.String
	task.EntityID = entityID.String
	task.Comment = comment.String
	task.CompletedByUserID = completedBy.String
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*entity.ApprovalTask, error) {
	var tasks []*entity.ApprovalTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
