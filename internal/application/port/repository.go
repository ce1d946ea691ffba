package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ErrStaleTask is returned by TaskRepository.Update when the task's version
// token no longer matches the stored row, i.e. a concurrent caller finalized
// the task first.
var ErrStaleTask = errors.New("task version is stale")

// TaskRepository defines persistence operations for ApprovalTask.
// All operations are scoped to a tenant; an empty tenantID addresses
// single-tenant deployments.
type TaskRepository interface {
	// Create persists a new task
	Create(ctx context.Context, task *entity.ApprovalTask) error

	// GetByID retrieves a task by its ID, returning entity.ErrNotFound if absent
	GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalTask, error)

	// Update persists a mutated task guarded by its version token.
	// Returns ErrStaleTask on a version mismatch and increments task.Version
	// on success.
	Update(ctx context.Context, task *entity.ApprovalTask) error

	// ListPendingByAssignees retrieves all Pending tasks assigned to any of
	// the given users
	ListPendingByAssignees(ctx context.Context, tenantID string, userIDs []string) ([]*entity.ApprovalTask, error)

	// ListByWorkflowInstance retrieves all tasks correlated to an external
	// workflow instance, ordered by creation time
	ListByWorkflowInstance(ctx context.Context, tenantID, workflowInstanceID string) ([]*entity.ApprovalTask, error)
}

// DelegationRepository defines persistence operations for ApprovalDelegation
type DelegationRepository interface {
	// Create persists a new delegation
	Create(ctx context.Context, delegation *entity.ApprovalDelegation) error

	// GetByID retrieves a delegation by its ID, returning entity.ErrNotFound if absent
	GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error)

	// Update persists a mutated delegation
	Update(ctx context.Context, delegation *entity.ApprovalDelegation) error

	// ListEffectiveByDelegate retrieves every delegation granting the given
	// user authority at time at, newest first
	ListEffectiveByDelegate(ctx context.Context, tenantID, delegateUserID string, at time.Time) ([]*entity.ApprovalDelegation, error)

	// ListByUser retrieves every delegation where the user appears as
	// delegator or delegate
	ListByUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalDelegation, error)

	// ExistsEffective reports whether an effective delegation from delegator
	// to delegate exists at time at
	ExistsEffective(ctx context.Context, tenantID, delegatorUserID, delegateUserID string, at time.Time) (bool, error)
}
