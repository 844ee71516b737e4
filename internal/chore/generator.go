package chore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
)

// Generator materializes due definitions into executions.
type Generator struct {
	definitions DefinitionStore
	executions  ExecutionStore
}

// NewGenerator creates a Generator that reads definitions from ds and
// materializes executions into es.
func NewGenerator(ds DefinitionStore, es ExecutionStore) *Generator {
	return &Generator{definitions: ds, executions: es}
}

// GenerateResult reports one Generate call. Only executions created by this
// call are listed; ones that already existed are not.
type GenerateResult struct {
	TargetDate       model.Date          `json:"target_date"`
	GeneratedCount   int                 `json:"generated_count"`
	TaskExecutionIDs []int64             `json:"task_execution_ids"`
	Failures         []GenerationFailure `json:"failures,omitempty"`
}

// GenerationFailure is a definition that could not be materialized.
type GenerationFailure struct {
	DefinitionID int64  `json:"definition_id"`
	Err          error  `json:"-"`
	Message      string `json:"error"`
}

// Generate creates a NOT_STARTED execution for every active definition due
// on target that does not have one yet. It is safe to call repeatedly and
// concurrently for the same date. A failing definition is recorded in
// Failures and the batch continues; only a failure to list definitions
// returns an error.
func (g *Generator) Generate(ctx context.Context, target model.Date) (*GenerateResult, error) {
	defs, err := g.definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	result := &GenerateResult{TargetDate: target, TaskExecutionIDs: []int64{}}
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if def.Deleted {
			continue
		}

		due, err := recurrence.IsDue(def, target)
		if err != nil {
			result.fail(def.ID, err)
			continue
		}
		if !due {
			continue
		}

		id, err := g.executions.CreateIfAbsent(ctx, def.ID, target)
		if errors.Is(err, model.ErrDuplicateGeneration) {
			continue
		}
		if err != nil {
			result.fail(def.ID, fmt.Errorf("create execution: %w", err))
			continue
		}
		result.TaskExecutionIDs = append(result.TaskExecutionIDs, id)
	}
	result.GeneratedCount = len(result.TaskExecutionIDs)
	return result, nil
}

// GenerateRange runs Generate for each day in [from, to], for backfills.
func (g *Generator) GenerateRange(ctx context.Context, from, to model.Date) ([]*GenerateResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	if span := from.DaysUntil(to); span > recurrence.MaxWindowDays {
		return nil, fmt.Errorf("range of %d days exceeds limit of %d", span, recurrence.MaxWindowDays)
	}

	var results []*GenerateResult
	for d := from; !d.After(to); d = d.AddDays(1) {
		r, err := g.Generate(ctx, d)
		if r != nil {
			results = append(results, r)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *GenerateResult) fail(defID int64, err error) {
	r.Failures = append(r.Failures, GenerationFailure{DefinitionID: defID, Err: err, Message: err.Error()})
}
