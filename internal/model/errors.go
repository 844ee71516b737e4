package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNoAssignee          = errors.New("at least one assignee is required")
	ErrDuplicateGeneration = errors.New("execution already generated for date")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrConflict            = errors.New("concurrent update conflict")
)

// TransitionError reports an action attempted against an execution whose
// status does not permit it.
type TransitionError struct {
	ExecutionID int64
	Action      string
	From        ExecutionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s execution %d in status %s", ErrInvalidTransition, e.Action, e.ExecutionID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InvariantError wraps ErrInvariantViolation with the offending record.
type InvariantError struct {
	Entity string
	ID     int64
	Msg    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s %d: %s", ErrInvariantViolation, e.Entity, e.ID, e.Msg)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// NotFoundError wraps ErrNotFound with the missing entity.
func NotFoundError(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}
