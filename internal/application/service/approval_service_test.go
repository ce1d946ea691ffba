package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Mock collaborators

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

type seqIDGenerator struct {
	next int
}

func (g *seqIDGenerator) NewID() string {
	g.next++
	return fmt.Sprintf("id-%03d", g.next)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTaskRepo struct {
	tasks      map[string]*entity.ApprovalTask
	updateFunc func(ctx context.Context, task *entity.ApprovalTask) error
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*entity.ApprovalTask)}
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.ApprovalTask) error {
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalTask, error) {
	task, ok := m.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	copied := *task
	return &copied, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *entity.ApprovalTask) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, task)
	}
	stored, ok := m.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, entity.ErrNotFound)
	}
	if stored.Version != task.Version {
		return port.ErrStaleTask
	}
	task.Version++
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskRepo) ListPendingByAssignees(ctx context.Context, tenantID string, userIDs []string) ([]*entity.ApprovalTask, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var result []*entity.ApprovalTask
	for _, task := range m.tasks {
		if task.TenantID == tenantID && task.Status == workflow.StatePending && wanted[task.AssignedToUserID] {
			copied := *task
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockTaskRepo) ListByWorkflowInstance(ctx context.Context, tenantID, workflowInstanceID string) ([]*entity.ApprovalTask, error) {
	var result []*entity.ApprovalTask
	for _, task := range m.tasks {
		if task.TenantID == tenantID && task.WorkflowInstanceID == workflowInstanceID {
			copied := *task
			result = append(result, &copied)
		}
	}
	return result, nil
}

type mockDelegationRepo struct {
	delegations map[string]*entity.ApprovalDelegation
}

func newMockDelegationRepo() *mockDelegationRepo {
	return &mockDelegationRepo{delegations: make(map[string]*entity.ApprovalDelegation)}
}

func (m *mockDelegationRepo) Create(ctx context.Context, d *entity.ApprovalDelegation) error {
	copied := *d
	m.delegations[d.ID] = &copied
	return nil
}

func (m *mockDelegationRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error) {
	d, ok := m.delegations[id]
	if !ok || d.TenantID != tenantID {
		return nil, fmt.Errorf("delegation %s: %w", id, entity.ErrNotFound)
	}
	copied := *d
	return &copied, nil
}

func (m *mockDelegationRepo) Update(ctx context.Context, d *entity.ApprovalDelegation) error {
	if _, ok := m.delegations[d.ID]; !ok {
		return fmt.Errorf("delegation %s: %w", d.ID, entity.ErrNotFound)
	}
	copied := *d
	m.delegations[d.ID] = &copied
	return nil
}

func (m *mockDelegationRepo) ListEffectiveByDelegate(ctx context.Context, tenantID, delegateUserID string, at time.Time) ([]*entity.ApprovalDelegation, error) {
	var result []*entity.ApprovalDelegation
	for _, d := range m.delegations {
		if d.TenantID == tenantID && d.DelegateUserID == delegateUserID && d.EffectiveAt(at) {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockDelegationRepo) ListByUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalDelegation, error) {
	var result []*entity.ApprovalDelegation
	for _, d := range m.delegations {
		if d.TenantID == tenantID && (d.DelegatorUserID == userID || d.DelegateUserID == userID) {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockDelegationRepo) ExistsEffective(ctx context.Context, tenantID, delegatorUserID, delegateUserID string, at time.Time) (bool, error) {
	for _, d := range m.delegations {
		if d.TenantID == tenantID && d.DelegatorUserID == delegatorUserID && d.DelegateUserID == delegateUserID && d.EffectiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

// Test fixture

type fixture struct {
	service     ApprovalService
	tasks       *mockTaskRepo
	delegations *mockDelegationRepo
	clock       *mockClock
}

func newFixture(now time.Time) *fixture {
	tasks := newMockTaskRepo()
	delegations := newMockDelegationRepo()
	clock := &mockClock{now: now}
	svc := NewApprovalService(tasks, delegations, clock, &seqIDGenerator{}, &mockLogger{})
	return &fixture{service: svc, tasks: tasks, delegations: delegations, clock: clock}
}

func (f *fixture) addDelegation(tenantID, delegator, delegate string, start, end time.Time, active bool, createdAt time.Time) {
	id := fmt.Sprintf("del-%d", len(f.delegations.delegations)+1)
	f.delegations.delegations[id] = &entity.ApprovalDelegation{
		ID:              id,
		TenantID:        tenantID,
		DelegatorUserID: delegator,
		DelegateUserID:  delegate,
		StartDate:       start,
		EndDate:         end,
		IsActive:        active,
		CreatedAt:       createdAt,
	}
}

var baseTime = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func TestApprovalService_CreateTask(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateTaskInput
		wantErr error
	}{
		{
			name: "valid task",
			input: CreateTaskInput{
				WorkflowInstanceID: "wf-1",
				TaskName:           "Approve invoice",
				AssignedToUserID:   "user-a",
			},
		},
		{
			name: "blank workflow instance id",
			input: CreateTaskInput{
				WorkflowInstanceID: "   ",
				TaskName:           "Approve invoice",
				AssignedToUserID:   "user-a",
			},
			wantErr: entity.ErrInvalidArgument,
		},
		{
			name: "blank task name",
			input: CreateTaskInput{
				WorkflowInstanceID: "wf-1",
				TaskName:           "",
				AssignedToUserID:   "user-a",
			},
			wantErr: entity.ErrInvalidArgument,
		},
		{
			name: "blank assignee",
			input: CreateTaskInput{
				WorkflowInstanceID: "wf-1",
				TaskName:           "Approve invoice",
				AssignedToUserID:   "",
			},
			wantErr: entity.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(baseTime)

			task, err := f.service.CreateTask(context.Background(), "tenant-1", tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateTask() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTask() error = %v", err)
			}
			if task.ID == "" {
				t.Error("CreateTask() did not assign an id")
			}
			if task.Status != workflow.StatePending {
				t.Errorf("Status = %v, want %v", task.Status, workflow.StatePending)
			}
			if task.TenantID != "tenant-1" {
				t.Errorf("TenantID = %v, want tenant-1", task.TenantID)
			}
			if !task.CreatedAt.Equal(baseTime) {
				t.Errorf("CreatedAt = %v, want %v", task.CreatedAt, baseTime)
			}
		})
	}
}

func TestApprovalService_ApproveTask_AssigneeAlwaysAuthorized(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	approved, err := f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-a", "fine by me")
	if err != nil {
		t.Fatalf("ApproveTask() error = %v", err)
	}

	if approved.Status != workflow.StateApproved {
		t.Errorf("Status = %v, want %v", approved.Status, workflow.StateApproved)
	}
	if approved.CompletedByUserID != "user-a" {
		t.Errorf("CompletedByUserID = %v, want user-a", approved.CompletedByUserID)
	}
	if approved.Comment != "fine by me" {
		t.Errorf("Comment = %v, want %q", approved.Comment, "fine by me")
	}
}

func TestApprovalService_ApproveTask_NotFound(t *testing.T) {
	f := newFixture(baseTime)

	_, err := f.service.ApproveTask(context.Background(), "tenant-1", "missing", "user-a", "")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("ApproveTask() error = %v, want ErrNotFound", err)
	}
}

func TestApprovalService_ApproveTask_DelegateWindowIsExact(t *testing.T) {
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		now        time.Time
		authorized bool
	}{
		{"at window start", start, true},
		{"inside window", start.AddDate(0, 0, 2), true},
		{"at window end", end, true},
		{"strictly before start", start.Add(-time.Second), false},
		{"strictly after end", end.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(start)
			task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
				WorkflowInstanceID: "wf-1",
				TaskName:           "Approve invoice",
				AssignedToUserID:   "user-a",
			})
			if err != nil {
				t.Fatalf("CreateTask() error = %v", err)
			}
			f.addDelegation("tenant-1", "user-a", "user-b", start, end, true, start)

			f.clock.now = tt.now
			_, err = f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-b", "")

			if tt.authorized && err != nil {
				t.Errorf("ApproveTask() error = %v, want success", err)
			}
			if !tt.authorized && !errors.Is(err, entity.ErrNotAuthorized) {
				t.Errorf("ApproveTask() error = %v, want ErrNotAuthorized", err)
			}
		})
	}
}

func TestApprovalService_ApproveTask_InactiveDelegationGrantsNothing(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	f.addDelegation("tenant-1", "user-a", "user-b", baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 1), false, baseTime)

	_, err = f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-b", "")
	if !errors.Is(err, entity.ErrNotAuthorized) {
		t.Errorf("ApproveTask() error = %v, want ErrNotAuthorized", err)
	}
}

func TestApprovalService_ApproveTask_UnrelatedUserNeverAuthorized(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	f.addDelegation("tenant-1", "user-a", "user-b", baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 1), true, baseTime)

	_, err = f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-z", "")
	if !errors.Is(err, entity.ErrNotAuthorized) {
		t.Errorf("ApproveTask() error = %v, want ErrNotAuthorized", err)
	}
}

func TestApprovalService_RejectTask(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	rejected, err := f.service.RejectTask(context.Background(), "tenant-1", task.ID, "user-a", "missing receipt")
	if err != nil {
		t.Fatalf("RejectTask() error = %v", err)
	}
	if rejected.Status != workflow.StateRejected {
		t.Errorf("Status = %v, want %v", rejected.Status, workflow.StateRejected)
	}
}

func TestApprovalService_EscalateTask(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	escalated, err := f.service.EscalateTask(context.Background(), "tenant-1", task.ID)
	if err != nil {
		t.Fatalf("EscalateTask() error = %v", err)
	}
	if escalated.Status != workflow.StateEscalated {
		t.Errorf("Status = %v, want %v", escalated.Status, workflow.StateEscalated)
	}
	if escalated.CompletedByUserID != "" {
		t.Errorf("CompletedByUserID = %v, want empty", escalated.CompletedByUserID)
	}
}

func TestApprovalService_DelegateTask(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	delegated, err := f.service.DelegateTask(context.Background(), "tenant-1", task.ID, "user-a", "user-c")
	if err != nil {
		t.Fatalf("DelegateTask() error = %v", err)
	}
	if delegated.Status != workflow.StateDelegated {
		t.Errorf("Status = %v, want %v", delegated.Status, workflow.StateDelegated)
	}
	if delegated.CompletedByUserID != "user-c" {
		t.Errorf("CompletedByUserID = %v, want user-c", delegated.CompletedByUserID)
	}

	_, err = f.service.DelegateTask(context.Background(), "tenant-1", task.ID, "user-a", "")
	if !errors.Is(err, entity.ErrInvalidArgument) {
		t.Errorf("DelegateTask() with blank delegate error = %v, want ErrInvalidArgument", err)
	}
}

func TestApprovalService_SingleTerminalTransition(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if _, err := f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-a", ""); err != nil {
		t.Fatalf("first ApproveTask() error = %v", err)
	}

	if _, err := f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-a", ""); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("second ApproveTask() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.service.RejectTask(context.Background(), "tenant-1", task.ID, "user-a", ""); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("RejectTask() after approve error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.service.EscalateTask(context.Background(), "tenant-1", task.ID); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("EscalateTask() after approve error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.service.DelegateTask(context.Background(), "tenant-1", task.ID, "user-a", "user-c"); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("DelegateTask() after approve error = %v, want ErrInvalidTransition", err)
	}
}

func TestApprovalService_StaleUpdateSurfacesAsInvalidTransition(t *testing.T) {
	f := newFixture(baseTime)
	task, err := f.service.CreateTask(context.Background(), "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice",
		AssignedToUserID:   "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	// Simulate a concurrent caller winning the race out of Pending.
	f.tasks.updateFunc = func(ctx context.Context, task *entity.ApprovalTask) error {
		return port.ErrStaleTask
	}

	_, err = f.service.ApproveTask(context.Background(), "tenant-1", task.ID, "user-a", "")
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("ApproveTask() error = %v, want ErrInvalidTransition", err)
	}
}

func TestApprovalService_GetPendingTasksForUser_Ordering(t *testing.T) {
	f := newFixture(baseTime)
	ctx := context.Background()

	due1 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	due2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	inputs := []CreateTaskInput{
		{WorkflowInstanceID: "wf-1", TaskName: "due january fifth", AssignedToUserID: "user-a", DueDate: &due1},
		{WorkflowInstanceID: "wf-1", TaskName: "no due date", AssignedToUserID: "user-a"},
		{WorkflowInstanceID: "wf-1", TaskName: "due january first", AssignedToUserID: "user-a", DueDate: &due2},
	}
	for _, input := range inputs {
		// Advance the clock so creation times are distinct.
		f.clock.now = f.clock.now.Add(time.Minute)
		if _, err := f.service.CreateTask(ctx, "tenant-1", input); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	pending, err := f.service.GetPendingTasksForUser(ctx, "tenant-1", "user-a")
	if err != nil {
		t.Fatalf("GetPendingTasksForUser() error = %v", err)
	}

	want := []string{"due january first", "due january fifth", "no due date"}
	if len(pending) != len(want) {
		t.Fatalf("GetPendingTasksForUser() returned %d tasks, want %d", len(pending), len(want))
	}
	for i, name := range want {
		if pending[i].TaskName != name {
			t.Errorf("pending[%d].TaskName = %v, want %v", i, pending[i].TaskName, name)
		}
	}
}

func TestApprovalService_GetPendingTasksForUser_DelegatedInboxMerge(t *testing.T) {
	f := newFixture(baseTime)
	ctx := context.Background()

	dueEarly := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	dueLate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if _, err := f.service.CreateTask(ctx, "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1", TaskName: "task of a", AssignedToUserID: "user-a", DueDate: &dueLate,
	}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := f.service.CreateTask(ctx, "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-2", TaskName: "task of b", AssignedToUserID: "user-b", DueDate: &dueEarly,
	}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	f.addDelegation("tenant-1", "user-a", "user-b", baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 1), true, baseTime)

	pending, err := f.service.GetPendingTasksForUser(ctx, "tenant-1", "user-b")
	if err != nil {
		t.Fatalf("GetPendingTasksForUser() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("merged inbox has %d tasks, want 2", len(pending))
	}
	if pending[0].TaskName != "task of b" || pending[1].TaskName != "task of a" {
		t.Errorf("merged inbox order = [%s, %s], want [task of b, task of a]", pending[0].TaskName, pending[1].TaskName)
	}

	// Once the delegation window is in the past, B sees only B's own tasks.
	f.clock.now = baseTime.AddDate(0, 0, 2)
	pending, err = f.service.GetPendingTasksForUser(ctx, "tenant-1", "user-b")
	if err != nil {
		t.Fatalf("GetPendingTasksForUser() error = %v", err)
	}
	if len(pending) != 1 || pending[0].TaskName != "task of b" {
		t.Errorf("inbox after expiry = %v tasks, want only task of b", len(pending))
	}
}

func TestApprovalService_ResolveActiveDelegator(t *testing.T) {
	f := newFixture(baseTime)
	ctx := context.Background()

	delegator, ok, err := f.service.ResolveActiveDelegator(ctx, "tenant-1", "user-b")
	if err != nil {
		t.Fatalf("ResolveActiveDelegator() error = %v", err)
	}
	if ok || delegator != "" {
		t.Errorf("ResolveActiveDelegator() = (%q, %v), want none", delegator, ok)
	}

	f.addDelegation("tenant-1", "user-a", "user-b", baseTime.AddDate(0, 0, -2), baseTime.AddDate(0, 0, 2), true, baseTime.AddDate(0, 0, -2))
	f.addDelegation("tenant-1", "user-c", "user-b", baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 2), true, baseTime.AddDate(0, 0, -1))

	// Most recently created effective delegation wins.
	delegator, ok, err = f.service.ResolveActiveDelegator(ctx, "tenant-1", "user-b")
	if err != nil {
		t.Fatalf("ResolveActiveDelegator() error = %v", err)
	}
	if !ok || delegator != "user-c" {
		t.Errorf("ResolveActiveDelegator() = (%q, %v), want (user-c, true)", delegator, ok)
	}
}

func TestApprovalService_TenantIsolation(t *testing.T) {
	f := newFixture(baseTime)
	ctx := context.Background()

	task, err := f.service.CreateTask(ctx, "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1", TaskName: "Approve invoice", AssignedToUserID: "user-a",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if _, err := f.service.GetTask(ctx, "tenant-2", task.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("GetTask() across tenants error = %v, want ErrNotFound", err)
	}

	pending, err := f.service.GetPendingTasksForUser(ctx, "tenant-2", "user-a")
	if err != nil {
		t.Fatalf("GetPendingTasksForUser() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending tasks across tenants = %d, want 0", len(pending))
	}
}

// Lifecycle walk from the approver's point of view: delegation opens a window
// in which the delegate can act, and a finalized task stays finalized.
func TestApprovalService_EndToEndScenario(t *testing.T) {
	f := newFixture(baseTime)
	ctx := context.Background()

	due := baseTime.AddDate(0, 0, 3)
	task, err := f.service.CreateTask(ctx, "tenant-1", CreateTaskInput{
		WorkflowInstanceID: "wf-1",
		TaskName:           "Approve invoice INV-42",
		AssignedToUserID:   "user-a",
		DueDate:            &due,
		EntityType:         "invoice",
		EntityID:           "INV-42",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	// Before any delegation exists, B is not authorized.
	if _, err := f.service.ApproveTask(ctx, "tenant-1", task.ID, "user-b", "ok"); !errors.Is(err, entity.ErrNotAuthorized) {
		t.Fatalf("ApproveTask() before delegation error = %v, want ErrNotAuthorized", err)
	}

	f.addDelegation("tenant-1", "user-a", "user-b", baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 1), true, baseTime)

	approved, err := f.service.ApproveTask(ctx, "tenant-1", task.ID, "user-b", "ok")
	if err != nil {
		t.Fatalf("ApproveTask() under delegation error = %v", err)
	}
	if approved.Status != workflow.StateApproved {
		t.Errorf("Status = %v, want %v", approved.Status, workflow.StateApproved)
	}
	if approved.CompletedByUserID != "user-b" {
		t.Errorf("CompletedByUserID = %v, want user-b", approved.CompletedByUserID)
	}
	if approved.Comment != "ok" {
		t.Errorf("Comment = %v, want %q", approved.Comment, "ok")
	}

	if _, err := f.service.ApproveTask(ctx, "tenant-1", task.ID, "user-b", "again"); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Errorf("second ApproveTask() error = %v, want ErrInvalidTransition", err)
	}
}
