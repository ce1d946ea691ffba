package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateTaskInput carries the fields for a new approval task
type CreateTaskInput struct {
	WorkflowInstanceID string     `json:"workflow_instance_id"`
	TaskName           string     `json:"task_name"`
	AssignedToUserID   string     `json:"assigned_to_user_id"`
	Description        string     `json:"description,omitempty"`
	AssignedToRoleName string     `json:"assigned_to_role_name,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	EntityType         string     `json:"entity_type,omitempty"`
	EntityID           string     `json:"entity_id,omitempty"`
}

// ApprovalService resolves approval authority and drives the task lifecycle.
// It creates tasks, validates actors against the delegation overlay, applies
// state transitions, and answers pending-inbox queries that merge direct
// assignments with delegated assignments. Every operation takes an explicit
// tenantID; an empty value addresses single-tenant deployments.
type ApprovalService interface {
	// CreateTask constructs and persists a new Pending task. No duplicate
	// detection is performed; callers must not double-create tasks for the
	// same step.
	CreateTask(ctx context.Context, tenantID string, input CreateTaskInput) (*entity.ApprovalTask, error)

	// ApproveTask finalizes the task as Approved if the actor is the assignee
	// or an effective delegate at call time
	ApproveTask(ctx context.Context, tenantID, taskID, actingUserID, comment string) (*entity.ApprovalTask, error)

	// RejectTask finalizes the task as Rejected under the same authorization rule
	RejectTask(ctx context.Context, tenantID, taskID, actingUserID, comment string) (*entity.ApprovalTask, error)

	// EscalateTask finalizes the task as Escalated. A system action: no actor,
	// no authorization check beyond the Pending precondition.
	EscalateTask(ctx context.Context, tenantID, taskID string) (*entity.ApprovalTask, error)

	// DelegateTask finalizes the task as Delegated, handing it to
	// delegateUserID. The actor must be authorized like Approve/Reject.
	DelegateTask(ctx context.Context, tenantID, taskID, actingUserID, delegateUserID string) (*entity.ApprovalTask, error)

	// GetTask retrieves a single task
	GetTask(ctx context.Context, tenantID, taskID string) (*entity.ApprovalTask, error)

	// GetTasksForWorkflow retrieves all tasks correlated to an external
	// workflow instance
	GetTasksForWorkflow(ctx context.Context, tenantID, workflowInstanceID string) ([]*entity.ApprovalTask, error)

	// GetPendingTasksForUser returns the merged pending inbox: tasks assigned
	// to the user plus tasks assigned to anyone the user effectively covers at
	// call time. Ordered by due date ascending with undated tasks last, then
	// by creation time.
	GetPendingTasksForUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalTask, error)

	// ResolveActiveDelegator returns the delegator covered by the user's most
	// recently created effective delegation, or false if none exists
	ResolveActiveDelegator(ctx context.Context, tenantID, userID string) (string, bool, error)
}

type approvalServiceImpl struct {
	tasks       port.TaskRepository
	delegations port.DelegationRepository
	clock       port.Clock
	idGen       port.IDGenerator
	logger      Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	tasks port.TaskRepository,
	delegations port.DelegationRepository,
	clock port.Clock,
	idGen port.IDGenerator,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		tasks:       tasks,
		delegations: delegations,
		clock:       clock,
		idGen:       idGen,
		logger:      logger,
	}
}

// CreateTask constructs and persists a new Pending task
func (s *approvalServiceImpl) CreateTask(ctx context.Context, tenantID string, input CreateTaskInput) (*entity.ApprovalTask, error) {
	if strings.TrimSpace(input.WorkflowInstanceID) == "" {
		return nil, fmt.Errorf("%w: workflow_instance_id is required", entity.ErrInvalidArgument)
	}
	if strings.TrimSpace(input.TaskName) == "" {
		return nil, fmt.Errorf("%w: task_name is required", entity.ErrInvalidArgument)
	}
	if strings.TrimSpace(input.AssignedToUserID) == "" {
		return nil, fmt.Errorf("%w: assigned_to_user_id is required", entity.ErrInvalidArgument)
	}

	now := s.clock.Now()
	task := &entity.ApprovalTask{
		ID:                 s.idGen.NewID(),
		TenantID:           tenantID,
		WorkflowInstanceID: input.WorkflowInstanceID,
		TaskName:           input.TaskName,
		Description:        input.Description,
		AssignedToUserID:   input.AssignedToUserID,
		AssignedToRoleName: input.AssignedToRoleName,
		EntityType:         input.EntityType,
		EntityID:           input.EntityID,
		Status:             workflow.StatePending,
		DueDate:            input.DueDate,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Error("Failed to create task",
			"error", err,
			"workflow_instance_id", input.WorkflowInstanceID)
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("Task created",
		"task_id", task.ID,
		"workflow_instance_id", task.WorkflowInstanceID,
		"assigned_to", task.AssignedToUserID)

	return task, nil
}

// ApproveTask finalizes the task as Approved
func (s *approvalServiceImpl) ApproveTask(ctx context.Context, tenantID, taskID, actingUserID, comment string) (*entity.ApprovalTask, error) {
	return s.finalize(ctx, tenantID, taskID, actingUserID, func(task *entity.ApprovalTask, now time.Time) error {
		return task.Approve(actingUserID, comment, now)
	})
}

// RejectTask finalizes the task as Rejected
func (s *approvalServiceImpl) RejectTask(ctx context.Context, tenantID, taskID, actingUserID, comment string) (*entity.ApprovalTask, error) {
	return s.finalize(ctx, tenantID, taskID, actingUserID, func(task *entity.ApprovalTask, now time.Time) error {
		return task.Reject(actingUserID, comment, now)
	})
}

// EscalateTask finalizes the task as Escalated
func (s *approvalServiceImpl) EscalateTask(ctx context.Context, tenantID, taskID string) (*entity.ApprovalTask, error) {
	task, err := s.tasks.GetByID(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	if err := task.Escalate(s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.persistTransition(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("Task escalated", "task_id", task.ID)
	return task, nil
}

// DelegateTask finalizes the task as Delegated
func (s *approvalServiceImpl) DelegateTask(ctx context.Context, tenantID, taskID, actingUserID, delegateUserID string) (*entity.ApprovalTask, error) {
	if strings.TrimSpace(delegateUserID) == "" {
		return nil, fmt.Errorf("%w: delegate_user_id is required", entity.ErrInvalidArgument)
	}

	return s.finalize(ctx, tenantID, taskID, actingUserID, func(task *entity.ApprovalTask, now time.Time) error {
		return task.Delegate(delegateUserID, now)
	})
}

// finalize runs the shared load-authorize-transition-persist path for
// user-initiated lifecycle actions
func (s *approvalServiceImpl) finalize(
	ctx context.Context,
	tenantID, taskID, actingUserID string,
	transition func(task *entity.ApprovalTask, now time.Time) error,
) (*entity.ApprovalTask, error) {
	task, err := s.tasks.GetByID(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	authorized, err := s.isAuthorized(ctx, task, actingUserID)
	if err != nil {
		return nil, err
	}
	if !authorized {
		s.logger.Info("Actor not authorized for task",
			"task_id", task.ID,
			"acting_user_id", actingUserID,
			"assigned_to", task.AssignedToUserID)
		return nil, fmt.Errorf("%w: user %s may not act on task %s", entity.ErrNotAuthorized, actingUserID, task.ID)
	}

	if err := transition(task, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.persistTransition(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("Task finalized",
		"task_id", task.ID,
		"status", task.Status.String(),
		"acting_user_id", actingUserID)

	return task, nil
}

// isAuthorized implements the authorization resolution algorithm: the actor is
// authorized iff they are the assignee, or an effective delegation from the
// assignee to the actor exists at the current time. Authorization can appear
// and disappear as delegation windows open and close.
func (s *approvalServiceImpl) isAuthorized(ctx context.Context, task *entity.ApprovalTask, actingUserID string) (bool, error) {
	if actingUserID == task.AssignedToUserID {
		return true, nil
	}

	exists, err := s.delegations.ExistsEffective(ctx, task.TenantID, task.AssignedToUserID, actingUserID, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to check delegation",
			"error", err,
			"task_id", task.ID,
			"acting_user_id", actingUserID)
		return false, fmt.Errorf("check delegation: %w", err)
	}
	return exists, nil
}

// persistTransition writes the finalized task through the version guard. A
// stale version means a concurrent caller won the race out of Pending, which
// surfaces as the same invalid-transition failure that caller produced.
func (s *approvalServiceImpl) persistTransition(ctx context.Context, task *entity.ApprovalTask) error {
	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, port.ErrStaleTask) {
			return fmt.Errorf("task %s was finalized concurrently: %w", task.ID, entity.ErrInvalidTransition)
		}
		s.logger.Error("Failed to persist task transition",
			"error", err,
			"task_id", task.ID)
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetTask retrieves a single task
func (s *approvalServiceImpl) GetTask(ctx context.Context, tenantID, taskID string) (*entity.ApprovalTask, error) {
	return s.tasks.GetByID(ctx, tenantID, taskID)
}

// GetTasksForWorkflow retrieves all tasks correlated to an external workflow instance
func (s *approvalServiceImpl) GetTasksForWorkflow(ctx context.Context, tenantID, workflowInstanceID string) ([]*entity.ApprovalTask, error) {
	tasks, err := s.tasks.ListByWorkflowInstance(ctx, tenantID, workflowInstanceID)
	if err != nil {
		s.logger.Error("Failed to list tasks for workflow",
			"error", err,
			"workflow_instance_id", workflowInstanceID)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetPendingTasksForUser returns the merged pending inbox
func (s *approvalServiceImpl) GetPendingTasksForUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalTask, error) {
	assignees, err := s.effectiveAssignees(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListPendingByAssignees(ctx, tenantID, assignees)
	if err != nil {
		s.logger.Error("Failed to list pending tasks",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}

	sortPendingTasks(tasks)
	return tasks, nil
}

// effectiveAssignees computes the user plus every delegator the user
// effectively covers at the moment of the call
func (s *approvalServiceImpl) effectiveAssignees(ctx context.Context, tenantID, userID string) ([]string, error) {
	grants, err := s.delegations.ListEffectiveByDelegate(ctx, tenantID, userID, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to list effective delegations",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("list delegations: %w", err)
	}

	assignees := []string{userID}
	seen := map[string]bool{userID: true}
	for _, grant := range grants {
		if !seen[grant.DelegatorUserID] {
			seen[grant.DelegatorUserID] = true
			assignees = append(assignees, grant.DelegatorUserID)
		}
	}
	return assignees, nil
}

// ResolveActiveDelegator returns the delegator covered by the user's most
// recently created effective delegation. Pinned selection rule: when several
// delegations are effective simultaneously, the newest one wins, so the answer
// is deterministic across store implementations.
func (s *approvalServiceImpl) ResolveActiveDelegator(ctx context.Context, tenantID, userID string) (string, bool, error) {
	grants, err := s.delegations.ListEffectiveByDelegate(ctx, tenantID, userID, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to resolve active delegator",
			"error", err,
			"user_id", userID)
		return "", false, fmt.Errorf("list delegations: %w", err)
	}
	if len(grants) == 0 {
		return "", false, nil
	}

	newest := grants[0]
	for _, grant := range grants[1:] {
		if grant.CreatedAt.After(newest.CreatedAt) {
			newest = grant
		}
	}
	return newest.DelegatorUserID, true, nil
}

// sortPendingTasks orders the inbox: ascending due date with undated tasks
// after all dated ones, creation time as tie-break. Approvers triage urgent
// work off this order, so it is a hard contract.
func sortPendingTasks(tasks []*entity.ApprovalTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	})
}
