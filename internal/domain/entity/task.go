package entity

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ApprovalTask represents one approval step against one business entity.
// A task is created Pending, assigned to exactly one user, and leaves Pending
// exactly once, through Approve, Reject, Escalate or Delegate. Tasks are
// retained for audit and never physically deleted.
//
// The entity enforces "only once"; who may act on the task is the resolver's
// concern (see service.ApprovalService).
type ApprovalTask struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id,omitempty"`

	// Correlation to the external process that triggered this step
	WorkflowInstanceID string `json:"workflow_instance_id"`
	TaskName           string `json:"task_name"`
	Description        string `json:"description,omitempty"`

	// Assignment. AssignedToRoleName is informational only and takes no part
	// in authorization resolution.
	AssignedToUserID   string `json:"assigned_to_user_id"`
	AssignedToRoleName string `json:"assigned_to_role_name,omitempty"`

	// Business object under approval
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`

	Status  workflow.State `json:"status"`
	Comment string         `json:"comment,omitempty"`
	DueDate *time.Time     `json:"due_date,omitempty"`

	// CompletedByUserID is the actor who actually closed the task; under
	// delegation it differs from AssignedToUserID. Stays empty on escalation.
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CompletedByUserID string     `json:"completed_by_user_id,omitempty"`

	// Version is the optimistic-concurrency token guarding the update;
	// incremented by the store on every successful write.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending returns true if the task still awaits a decision
func (t *ApprovalTask) IsPending() bool {
	return t != nil && t.Status == workflow.StatePending
}

// Approve finalizes the task as Approved, recording the acting user, an
// optional comment and the completion timestamp. Fails with
// ErrInvalidTransition if the task is not Pending.
func (t *ApprovalTask) Approve(actingUserID, comment string, now time.Time) error {
	if err := t.fire(workflow.TriggerApprove); err != nil {
		return err
	}
	t.complete(actingUserID, comment, now)
	return nil
}

// Reject finalizes the task as Rejected, recording the acting user, an
// optional comment and the completion timestamp.
func (t *ApprovalTask) Reject(actingUserID, comment string, now time.Time) error {
	if err := t.fire(workflow.TriggerReject); err != nil {
		return err
	}
	t.complete(actingUserID, comment, now)
	return nil
}

// Escalate finalizes the task as Escalated. Escalation is a system action,
// not a user decision, so no completing user is recorded.
func (t *ApprovalTask) Escalate(now time.Time) error {
	if err := t.fire(workflow.TriggerEscalate); err != nil {
		return err
	}
	t.complete("", "", now)
	return nil
}

// Delegate finalizes the task as Delegated, recording the delegate as the
// completing user. The task stays Delegated even if the underlying delegation
// later expires or is deactivated.
func (t *ApprovalTask) Delegate(delegateUserID string, now time.Time) error {
	if err := t.fire(workflow.TriggerDelegate); err != nil {
		return err
	}
	t.complete(delegateUserID, "", now)
	return nil
}

// fire runs the trigger through the lifecycle machine and applies the
// resulting state
func (t *ApprovalTask) fire(trigger workflow.Trigger) error {
	machine := workflow.NewTaskLifecycle(t.Status)
	if err := machine.Fire(trigger); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Status = machine.State()
	return nil
}

// complete stamps the completion fields. Callers reach here exactly once per
// task since every completing transition leaves Pending.
func (t *ApprovalTask) complete(completedBy, comment string, now time.Time) {
	completedAt := now
	t.CompletedAt = &completedAt
	t.CompletedByUserID = completedBy
	t.Comment = comment
	t.UpdatedAt = now
}
