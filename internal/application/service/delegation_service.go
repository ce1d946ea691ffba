package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// CreateDelegationInput carries the fields for a new delegation grant
type CreateDelegationInput struct {
	DelegatorUserID string    `json:"delegator_user_id"`
	DelegateUserID  string    `json:"delegate_user_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Reason          string    `json:"reason,omitempty"`
}

// UpdateDelegationInput carries the mutable fields of an existing grant
type UpdateDelegationInput struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	Reason    string    `json:"reason,omitempty"`
}

// DelegationService is the administrative surface for delegation grants.
// The resolver only reads delegations; everything here is plain CRUD with
// window validation. Overlapping grants for the same delegator are allowed
// and all apply.
type DelegationService interface {
	// CreateDelegation creates a new active delegation grant
	CreateDelegation(ctx context.Context, tenantID string, input CreateDelegationInput) (*entity.ApprovalDelegation, error)

	// GetDelegation retrieves a delegation by id
	GetDelegation(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error)

	// UpdateDelegation replaces the window, active flag and reason of a grant
	UpdateDelegation(ctx context.Context, tenantID, id string, input UpdateDelegationInput) (*entity.ApprovalDelegation, error)

	// DeactivateDelegation soft-toggles a grant off without touching its window
	DeactivateDelegation(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error)

	// ListDelegationsForUser retrieves every grant where the user appears as
	// delegator or delegate
	ListDelegationsForUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalDelegation, error)
}

type delegationServiceImpl struct {
	delegations port.DelegationRepository
	clock       port.Clock
	idGen       port.IDGenerator
	logger      Logger
}

// NewDelegationService creates a new DelegationService
func NewDelegationService(
	delegations port.DelegationRepository,
	clock port.Clock,
	idGen port.IDGenerator,
	logger Logger,
) DelegationService {
	return &delegationServiceImpl{
		delegations: delegations,
		clock:       clock,
		idGen:       idGen,
		logger:      logger,
	}
}

// CreateDelegation creates a new active delegation grant
func (s *delegationServiceImpl) CreateDelegation(ctx context.Context, tenantID string, input CreateDelegationInput) (*entity.ApprovalDelegation, error) {
	now := s.clock.Now()
	delegation := &entity.ApprovalDelegation{
		ID:              s.idGen.NewID(),
		TenantID:        tenantID,
		DelegatorUserID: input.DelegatorUserID,
		DelegateUserID:  input.DelegateUserID,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		IsActive:        true,
		Reason:          input.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := delegation.Validate(); err != nil {
		return nil, err
	}

	if err := s.delegations.Create(ctx, delegation); err != nil {
		s.logger.Error("Failed to create delegation",
			"error", err,
			"delegator_user_id", input.DelegatorUserID,
			"delegate_user_id", input.DelegateUserID)
		return nil, fmt.Errorf("create delegation: %w", err)
	}

	s.logger.Info("Delegation created",
		"delegation_id", delegation.ID,
		"delegator_user_id", delegation.DelegatorUserID,
		"delegate_user_id", delegation.DelegateUserID)

	return delegation, nil
}

// GetDelegation retrieves a delegation by id
func (s *delegationServiceImpl) GetDelegation(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error) {
	return s.delegations.GetByID(ctx, tenantID, id)
}

// UpdateDelegation replaces the window, active flag and reason of a grant
func (s *delegationServiceImpl) UpdateDelegation(ctx context.Context, tenantID, id string, input UpdateDelegationInput) (*entity.ApprovalDelegation, error) {
	delegation, err := s.delegations.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	delegation.StartDate = input.StartDate
	delegation.EndDate = input.EndDate
	delegation.IsActive = input.IsActive
	delegation.Reason = input.Reason
	delegation.UpdatedAt = s.clock.Now()

	if err := delegation.Validate(); err != nil {
		return nil, err
	}

	if err := s.delegations.Update(ctx, delegation); err != nil {
		s.logger.Error("Failed to update delegation",
			"error", err,
			"delegation_id", id)
		return nil, fmt.Errorf("update delegation: %w", err)
	}

	s.logger.Info("Delegation updated", "delegation_id", id)
	return delegation, nil
}

// DeactivateDelegation soft-toggles a grant off. Already-Delegated tasks stay
// Delegated; the toggle only affects authorization from this point on.
func (s *delegationServiceImpl) DeactivateDelegation(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error) {
	delegation, err := s.delegations.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	delegation.IsActive = false
	delegation.UpdatedAt = s.clock.Now()

	if err := s.delegations.Update(ctx, delegation); err != nil {
		s.logger.Error("Failed to deactivate delegation",
			"error", err,
			"delegation_id", id)
		return nil, fmt.Errorf("deactivate delegation: %w", err)
	}

	s.logger.Info("Delegation deactivated", "delegation_id", id)
	return delegation, nil
}

// ListDelegationsForUser retrieves every grant touching the user
func (s *delegationServiceImpl) ListDelegationsForUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalDelegation, error) {
	delegations, err := s.delegations.ListByUser(ctx, tenantID, userID)
	if err != nil {
		s.logger.Error("Failed to list delegations",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	return delegations, nil
}
