package model

import (
	"fmt"
	"time"
)

type Scope string

const (
	ScopeFamily   Scope = "FAMILY"
	ScopePersonal Scope = "PERSONAL"
)

func (s Scope) Valid() bool {
	return s == ScopeFamily || s == ScopePersonal
}

// TaskDefinition is the reusable template for a chore.
type TaskDefinition struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TimeRange   TimeRange `json:"time_range"`
	Scope       Scope     `json:"scope"`
	OwnerID     *int64    `json:"owner_id"`
	Point       int       `json:"point"`
	Schedule    Schedule  `json:"-"`
	Version     int64     `json:"version"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the invariants upstream editors must maintain.
func (d TaskDefinition) Validate() error {
	if d.Name == "" {
		return d.invariant("name is required")
	}
	if !d.Scope.Valid() {
		return d.invariant(fmt.Sprintf("unknown scope %q", d.Scope))
	}
	if d.Scope == ScopePersonal && d.OwnerID == nil {
		return d.invariant("personal task requires an owner")
	}
	if d.Scope == ScopeFamily && d.OwnerID != nil {
		return d.invariant("family task cannot have an owner")
	}
	if d.Point < 0 {
		return d.invariant("point must not be negative")
	}
	if !d.TimeRange.Valid() {
		return d.invariant("invalid time range")
	}
	if err := ValidateSchedule(d.Schedule); err != nil {
		return &InvariantError{Entity: "task definition", ID: d.ID, Msg: err.Error()}
	}
	return nil
}

func (d TaskDefinition) invariant(msg string) error {
	return &InvariantError{Entity: "task definition", ID: d.ID, Msg: msg}
}

// IsPersonalFor reports whether d is a personal task owned by memberID.
func (d TaskDefinition) IsPersonalFor(memberID int64) bool {
	return d.Scope == ScopePersonal && d.OwnerID != nil && *d.OwnerID == memberID
}
