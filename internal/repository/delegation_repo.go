package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"go.uber.org/zap"
)

const delegationColumns = `id, tenant_id, delegator_user_id, delegate_user_id,
	start_date, end_date, is_active, reason, created_at, updated_at`

// DelegationRepository handles approval delegation database operations
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) *DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

var _ port.DelegationRepository = (*DelegationRepository)(nil)

// Create persists a new delegation
func (r *DelegationRepository) Create(ctx context.Context, delegation *entity.ApprovalDelegation) error {
	query := `
		INSERT INTO approval_delegations (
			id, tenant_id, delegator_user_id, delegate_user_id,
			start_date, end_date, is_active, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		delegation.ID,
		delegation.TenantID,
		delegation.DelegatorUserID,
		delegation.DelegateUserID,
		delegation.StartDate,
		delegation.EndDate,
		delegation.IsActive,
		nullString(delegation.Reason),
		delegation.CreatedAt,
		delegation.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create delegation", zap.String("delegation_id", delegation.ID), zap.Error(err))
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	return nil
}

// GetByID retrieves a delegation by its ID within the tenant scope
func (r *DelegationRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalDelegation, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_delegations WHERE id = ? AND tenant_id = ?`, delegationColumns)

	delegation, err := scanDelegation(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("delegation %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get delegation by ID", zap.String("delegation_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}

	return delegation, nil
}

// Update persists a mutated delegation
func (r *DelegationRepository) Update(ctx context.Context, delegation *entity.ApprovalDelegation) error {
	query := `
		UPDATE approval_delegations
		SET start_date = ?, end_date = ?, is_active = ?, reason = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		delegation.StartDate,
		delegation.EndDate,
		delegation.IsActive,
		nullString(delegation.Reason),
		delegation.UpdatedAt,
		delegation.ID,
		delegation.TenantID,
	)
	if err != nil {
		r.logger.Error("Failed to update delegation", zap.String("delegation_id", delegation.ID), zap.Error(err))
		return fmt.Errorf("failed to update delegation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delegation %s: %w", delegation.ID, entity.ErrNotFound)
	}

	return nil
}

// ListEffectiveByDelegate retrieves every delegation granting the user
// authority at time at, newest first. Window bounds are inclusive.
func (r *DelegationRepository) ListEffectiveByDelegate(ctx context.Context, tenantID, delegateUserID string, at time.Time) ([]*entity.ApprovalDelegation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_delegations
		WHERE tenant_id = ? AND delegate_user_id = ? AND is_active = 1
			AND start_date <= ? AND end_date >= ?
		ORDER BY created_at DESC
	`, delegationColumns)

	rows, err := r.db.QueryContext(ctx, query, tenantID, delegateUserID, at, at)
	if err != nil {
		r.logger.Error("Failed to list effective delegations",
			zap.String("delegate_user_id", delegateUserID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	return collectDelegations(rows)
}

// ListByUser retrieves every delegation where the user appears as delegator
// or delegate
func (r *DelegationRepository) ListByUser(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalDelegation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_delegations
		WHERE tenant_id = ? AND (delegator_user_id = ? OR delegate_user_id = ?)
		ORDER BY created_at DESC
	`, delegationColumns)

	rows, err := r.db.QueryContext(ctx, query, tenantID, userID, userID)
	if err != nil {
		r.logger.Error("Failed to list delegations by user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	return collectDelegations(rows)
}

// ExistsEffective reports whether an effective delegation from delegator to
// delegate exists at time at
func (r *DelegationRepository) ExistsEffective(ctx context.Context, tenantID, delegatorUserID, delegateUserID string, at time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM approval_delegations
			WHERE tenant_id = ? AND delegator_user_id = ? AND delegate_user_id = ?
				AND is_active = 1 AND start_date <= ? AND end_date >= ?
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, tenantID, delegatorUserID, delegateUserID, at, at).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check effective delegation",
			zap.String("delegator_user_id", delegatorUserID),
			zap.String("delegate_user_id", delegateUserID),
			zap.Error(err))
		return false, fmt.Errorf("failed to check delegation: %w", err)
	}

	return exists, nil
}

func scanDelegation(s scanner) (*entity.ApprovalDelegation, error) {
	var delegation entity.ApprovalDelegation
	var reason sql.NullString

	err := s.Scan(
		&delegation.ID,
		&delegation.TenantID,
		&delegation.DelegatorUserID,
		&delegation.DelegateUserID,
		&delegation.StartDate,
		&delegation.EndDate,
		&delegation.IsActive,
		&reason,
		&delegation.CreatedAt,
		&delegation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	delegation.Reason = reason.String
	return &delegation, nil
}

func collectDelegations(rows *sql.Rows) ([]*entity.ApprovalDelegation, error) {
	var delegations []*entity.ApprovalDelegation
	for rows.Next() {
		delegation, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, delegation)
	}
	return delegations, rows.Err()
}
