package entity

import (
	"errors"

	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

var (
	// ErrInvalidArgument is returned when a required field is blank or malformed
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when an entity id does not resolve to a stored entity
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized is returned when the acting user is neither the assignee
	// nor covered by an effective delegation
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidTransition is returned when a lifecycle action is attempted on a
	// task that already left Pending
	ErrInvalidTransition = workflow.ErrInvalidTransition
)
