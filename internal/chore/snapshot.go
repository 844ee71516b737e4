package chore

import (
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// CaptureSnapshot freezes the mutable fields of def as of now. The result
// shares no memory with def, so later edits to the definition cannot reach it.
func CaptureSnapshot(def model.TaskDefinition, now time.Time) model.TaskSnapshot {
	return model.TaskSnapshot{
		Name:              def.Name,
		Description:       def.Description,
		TimeRange:         def.TimeRange,
		Scope:             def.Scope,
		DefinitionVersion: def.Version,
		FrozenPoint:       def.Point,
		CapturedAt:        now.UTC(),
	}
}
