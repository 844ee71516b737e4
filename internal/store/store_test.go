package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func mustMember(t *testing.T, ms *MemberStore, name string, role model.Role) *model.Member {
	t.Helper()
	m, err := ms.Create(context.Background(), name, role, "#3b82f6", "")
	require.NoError(t, err)
	return m
}

func dailyDef(name string) model.TaskDefinition {
	return model.TaskDefinition{
		Name:      name,
		Scope:     model.ScopeFamily,
		Point:     3,
		TimeRange: model.TimeRange{Start: model.NewTimeOfDay(18, 0), End: model.NewTimeOfDay(18, 30)},
		Schedule:  model.Recurring{Pattern: model.Daily{}, StartDate: model.NewDate(2024, 1, 1)},
	}
}
