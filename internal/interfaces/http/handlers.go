package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/report"
)

const (
	tenantHeader = "X-Tenant-ID"
	userHeader   = "X-User-ID"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService   service.ApprovalService
	delegationService service.DelegationService
	exporter          *report.PendingTaskExporter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	delegationService service.DelegationService,
	exporter *report.PendingTaskExporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService:   approvalService,
		delegationService: delegationService,
		exporter:          exporter,
		logger:            logger,
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

// TaskResponse represents an approval task in API responses
type TaskResponse struct {
	ID                 string  `json:"id"`
	WorkflowInstanceID string  `json:"workflow_instance_id"`
	TaskName           string  `json:"task_name"`
	Description        string  `json:"description,omitempty"`
	AssignedToUserID   string  `json:"assigned_to_user_id"`
	AssignedToRoleName string  `json:"assigned_to_role_name,omitempty"`
	EntityType         string  `json:"entity_type,omitempty"`
	EntityID           string  `json:"entity_id,omitempty"`
	Status             string  `json:"status"`
	Comment            string  `json:"comment,omitempty"`
	DueDate            *string `json:"due_date,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	CompletedByUserID  string  `json:"completed_by_user_id,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// DelegationResponse represents a delegation grant in API responses
type DelegationResponse struct {
	ID              string `json:"id"`
	DelegatorUserID string `json:"delegator_user_id"`
	DelegateUserID  string `json:"delegate_user_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	IsActive        bool   `json:"is_active"`
	Reason          string `json:"reason,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// DelegatorResponse represents the active-delegator lookup result
type DelegatorResponse struct {
	UserID          string `json:"user_id"`
	DelegatorUserID string `json:"delegator_user_id,omitempty"`
	Delegated       bool   `json:"delegated"`
}

// DecisionRequest carries an optional comment for approve/reject
type DecisionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// DelegateTaskRequest names the user receiving an ad-hoc task delegation
type DelegateTaskRequest struct {
	DelegateUserID string `json:"delegate_user_id"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var input service.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	task, err := h.approvalService.CreateTask(c.Request.Context(), tenantID(c), input)
	if err != nil {
		h.writeError(c, "Failed to create task", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toTaskResponse(task),
	})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	task, err := h.approvalService.GetTask(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to get task", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponse(task),
	})
}

// ApproveTask handles POST /api/v1/tasks/:id/approve
func (h *Handlers) ApproveTask(c *gin.Context) {
	h.decide(c, h.approvalService.ApproveTask)
}

// RejectTask handles POST /api/v1/tasks/:id/reject
func (h *Handlers) RejectTask(c *gin.Context) {
	h.decide(c, h.approvalService.RejectTask)
}

// decide handles the shared approve/reject flow. The acting user comes from
// the X-User-ID header, never from the body.
func (h *Handlers) decide(
	c *gin.Context,
	action func(ctx context.Context, tenantID, taskID, actingUserID, comment string) (*entity.ApprovalTask, error),
) {
	actingUser, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	task, err := action(c.Request.Context(), tenantID(c), c.Param("id"), actingUser, req.Comment)
	if err != nil {
		h.writeError(c, "Failed to complete task", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponse(task),
	})
}

// EscalateTask handles POST /api/v1/tasks/:id/escalate
func (h *Handlers) EscalateTask(c *gin.Context) {
	task, err := h.approvalService.EscalateTask(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to escalate task", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponse(task),
	})
}

// DelegateTask handles POST /api/v1/tasks/:id/delegate
func (h *Handlers) DelegateTask(c *gin.Context) {
	actingUser, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req DelegateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	task, err := h.approvalService.DelegateTask(c.Request.Context(), tenantID(c), c.Param("id"), actingUser, req.DelegateUserID)
	if err != nil {
		h.writeError(c, "Failed to delegate task", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponse(task),
	})
}

// GetWorkflowTasks handles GET /api/v1/workflows/:id/tasks
func (h *Handlers) GetWorkflowTasks(c *gin.Context) {
	tasks, err := h.approvalService.GetTasksForWorkflow(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to list workflow tasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponses(tasks),
	})
}

// GetPendingTasks handles GET /api/v1/users/:id/tasks/pending
func (h *Handlers) GetPendingTasks(c *gin.Context) {
	tasks, err := h.approvalService.GetPendingTasksForUser(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to list pending tasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTaskResponses(tasks),
	})
}

// ExportPendingTasks handles GET /api/v1/users/:id/tasks/pending/export
func (h *Handlers) ExportPendingTasks(c *gin.Context) {
	userID := c.Param("id")
	tasks, err := h.approvalService.GetPendingTasksForUser(c.Request.Context(), tenantID(c), userID)
	if err != nil {
		h.writeError(c, "Failed to list pending tasks", err)
		return
	}

	filename := fmt.Sprintf("pending-tasks-%s.xlsx", userID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.Export(c.Writer, userID, tasks); err != nil {
		h.logger.Error("Failed to export pending tasks", "user_id", userID, "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

// ResolveDelegator handles GET /api/v1/users/:id/delegator
func (h *Handlers) ResolveDelegator(c *gin.Context) {
	userID := c.Param("id")
	delegator, ok, err := h.approvalService.ResolveActiveDelegator(c.Request.Context(), tenantID(c), userID)
	if err != nil {
		h.writeError(c, "Failed to resolve delegator", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: DelegatorResponse{
			UserID:          userID,
			DelegatorUserID: delegator,
			Delegated:       ok,
		},
	})
}

// ListUserDelegations handles GET /api/v1/users/:id/delegations
func (h *Handlers) ListUserDelegations(c *gin.Context) {
	delegations, err := h.delegationService.ListDelegationsForUser(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to list delegations", err)
		return
	}

	responses := make([]DelegationResponse, 0, len(delegations))
	for _, d := range delegations {
		responses = append(responses, toDelegationResponse(d))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// CreateDelegation handles POST /api/v1/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	var input service.CreateDelegationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	delegation, err := h.delegationService.CreateDelegation(c.Request.Context(), tenantID(c), input)
	if err != nil {
		h.writeError(c, "Failed to create delegation", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toDelegationResponse(delegation),
	})
}

// GetDelegation handles GET /api/v1/delegations/:id
func (h *Handlers) GetDelegation(c *gin.Context) {
	delegation, err := h.delegationService.GetDelegation(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to get delegation", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDelegationResponse(delegation),
	})
}

// UpdateDelegation handles PUT /api/v1/delegations/:id
func (h *Handlers) UpdateDelegation(c *gin.Context) {
	var input service.UpdateDelegationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	delegation, err := h.delegationService.UpdateDelegation(c.Request.Context(), tenantID(c), c.Param("id"), input)
	if err != nil {
		h.writeError(c, "Failed to update delegation", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDelegationResponse(delegation),
	})
}

// DeactivateDelegation handles POST /api/v1/delegations/:id/deactivate
func (h *Handlers) DeactivateDelegation(c *gin.Context) {
	delegation, err := h.delegationService.DeactivateDelegation(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "Failed to deactivate delegation", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDelegationResponse(delegation),
	})
}

// tenantID reads the tenant header. Empty means single-tenant deployment.
func tenantID(c *gin.Context) string {
	return c.GetHeader(tenantHeader)
}

// requireUser reads the acting user header, rejecting the request if absent.
func (h *Handlers) requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "missing " + userHeader + " header",
		})
		return "", false
	}
	return userID, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// writeError maps domain errors to HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		c.JSON(status, Response{
			Success: false,
			Error:   msg,
		})
		return
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

func toTaskResponse(task *entity.ApprovalTask) TaskResponse {
	return TaskResponse{
		ID:                 task.ID,
		WorkflowInstanceID: task.WorkflowInstanceID,
		TaskName:           task.TaskName,
		Description:        task.Description,
		AssignedToUserID:   task.AssignedToUserID,
		AssignedToRoleName: task.AssignedToRoleName,
		EntityType:         task.EntityType,
		EntityID:           task.EntityID,
		Status:             task.Status.String(),
		Comment:            task.Comment,
		DueDate:            formatTimePtr(task.DueDate),
		CompletedAt:        formatTimePtr(task.CompletedAt),
		CompletedByUserID:  task.CompletedByUserID,
		CreatedAt:          task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          task.UpdatedAt.Format(time.RFC3339),
	}
}

func toTaskResponses(tasks []*entity.ApprovalTask) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task))
	}
	return responses
}

func toDelegationResponse(d *entity.ApprovalDelegation) DelegationResponse {
	return DelegationResponse{
		ID:              d.ID,
		DelegatorUserID: d.DelegatorUserID,
		DelegateUserID:  d.DelegateUserID,
		StartDate:       d.StartDate.Format(time.RFC3339),
		EndDate:         d.EndDate.Format(time.RFC3339),
		IsActive:        d.IsActive,
		Reason:          d.Reason,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
