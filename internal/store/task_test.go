package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/model"
)

func TestTaskRoundTripsSchedules(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	owner := mustMember(t, NewMemberStore(db), "Alice", model.RoleParent)

	end := model.NewDate(2024, 6, 30)
	schedules := []model.Schedule{
		model.Recurring{Pattern: model.Daily{}, StartDate: model.NewDate(2024, 1, 1)},
		model.Recurring{Pattern: model.Daily{SkipWeekends: true}, StartDate: model.NewDate(2024, 1, 1), EndDate: &end},
		model.Recurring{Pattern: model.Weekly{DayOfWeek: time.Saturday}, StartDate: model.NewDate(2024, 1, 6)},
		model.Recurring{Pattern: model.Monthly{DayOfMonth: 28}, StartDate: model.NewDate(2024, 1, 1)},
		model.OneTime{Deadline: model.NewDate(2024, 3, 1)},
	}

	for _, sched := range schedules {
		def := dailyDef("Laundry")
		def.Scope = model.ScopePersonal
		def.OwnerID = &owner.ID
		def.Schedule = sched

		created, err := ts.Create(ctx, def)
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, sched, created.Schedule)
		require.NotNil(t, created.OwnerID)
		assert.Equal(t, owner.ID, *created.OwnerID)
		assert.Equal(t, def.TimeRange, created.TimeRange)
	}
}

func TestTaskCreateValidates(t *testing.T) {
	ts := NewTaskStore(setupTestDB(t))

	def := dailyDef("Orphan")
	def.Scope = model.ScopePersonal
	_, err := ts.Create(context.Background(), def)
	assert.ErrorIs(t, err, model.ErrInvariantViolation)

	def = dailyDef("Bad monthly")
	def.Schedule = model.Recurring{Pattern: model.Monthly{DayOfMonth: 30}, StartDate: model.NewDate(2024, 1, 1)}
	_, err = ts.Create(context.Background(), def)
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

func TestTaskUpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	ts := NewTaskStore(setupTestDB(t))

	created, err := ts.Create(ctx, dailyDef("Dishes"))
	require.NoError(t, err)

	created.Point = 10
	created.Name = "Dishes and pans"
	updated, err := ts.Update(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 10, updated.Point)
	assert.Equal(t, "Dishes and pans", updated.Name)

	updated.ID = 999
	_, err = ts.Update(ctx, *updated)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTaskSoftDelete(t *testing.T) {
	ctx := context.Background()
	ts := NewTaskStore(setupTestDB(t))

	keep, err := ts.Create(ctx, dailyDef("Keep"))
	require.NoError(t, err)
	gone, err := ts.Create(ctx, dailyDef("Gone"))
	require.NoError(t, err)

	require.NoError(t, ts.SoftDelete(ctx, gone.ID))
	assert.ErrorIs(t, ts.SoftDelete(ctx, gone.ID), model.ErrNotFound)

	active, err := ts.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, keep.ID, active[0].ID)

	got, err := ts.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Deleted)
	assert.Equal(t, int64(2), got.Version)

	missing, err := ts.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTaskListByOwner(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ms := NewMemberStore(db)
	alice := mustMember(t, ms, "Alice", model.RoleParent)
	bob := mustMember(t, ms, "Bob", model.RoleChild)

	for _, owner := range []int64{alice.ID, bob.ID, bob.ID} {
		def := dailyDef("Homework")
		def.Scope = model.ScopePersonal
		def.OwnerID = &owner
		_, err := ts.Create(ctx, def)
		require.NoError(t, err)
	}

	got, err := ts.ListByOwner(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
