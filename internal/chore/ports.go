package chore

import (
	"context"

	"github.com/dukerupert/chorely/internal/model"
)

// DefinitionStore reads task definitions. GetByID returns (nil, nil) when
// the id does not exist.
type DefinitionStore interface {
	ListActive(ctx context.Context) ([]model.TaskDefinition, error)
	GetByID(ctx context.Context, id int64) (*model.TaskDefinition, error)
}

// MemberDirectory is the read-only list of household members.
type MemberDirectory interface {
	List(ctx context.Context) ([]model.Member, error)
}

// ExecutionStore persists executions.
//
// CreateIfAbsent must be atomic per (definitionID, date) and return
// model.ErrDuplicateGeneration when a row already exists.
//
// Update loads the execution, applies fn and writes the result back as one
// serialized unit: no other Update of the same execution may interleave.
// If fn returns an error nothing is written. UpdateWithDefinition also
// reads the execution's definition inside that unit. GetByID and both
// updates report a missing id as model.ErrNotFound.
type ExecutionStore interface {
	CreateIfAbsent(ctx context.Context, definitionID int64, date model.Date) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.TaskExecution, error)
	Update(ctx context.Context, id int64, fn func(*model.TaskExecution) error) (*model.TaskExecution, error)
	UpdateWithDefinition(ctx context.Context, id int64, fn func(*model.TaskExecution, *model.TaskDefinition) error) (*model.TaskExecution, error)
}
