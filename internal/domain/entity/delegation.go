package entity

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalDelegation represents a time-bounded grant letting one user act on
// another's tasks. Both the active flag and the date window must hold for the
// grant to be effective. Multiple simultaneous delegations for the same
// delegator are permitted and all apply.
type ApprovalDelegation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id,omitempty"`

	// DelegatorUserID is the user being covered; DelegateUserID acts on
	// their behalf.
	DelegatorUserID string `json:"delegator_user_id"`
	DelegateUserID  string `json:"delegate_user_id"`

	// StartDate and EndDate are inclusive bounds
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	IsActive bool   `json:"is_active"`
	Reason   string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveAt reports whether the delegation grants authority at time t.
// Both window bounds are inclusive.
func (d *ApprovalDelegation) EffectiveAt(t time.Time) bool {
	return d.IsActive && !t.Before(d.StartDate) && !t.After(d.EndDate)
}

// Validate checks construction invariants
func (d *ApprovalDelegation) Validate() error {
	if strings.TrimSpace(d.DelegatorUserID) == "" {
		return fmt.Errorf("%w: delegator_user_id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(d.DelegateUserID) == "" {
		return fmt.Errorf("%w: delegate_user_id is required", ErrInvalidArgument)
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", ErrInvalidArgument)
	}
	if d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("%w: end_date must not precede start_date", ErrInvalidArgument)
	}
	return nil
}
