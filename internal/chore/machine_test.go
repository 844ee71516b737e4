package chore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
)

var (
	alice = model.Member{ID: 1, Name: "Alice", Role: model.RoleParent}
	bob   = model.Member{ID: 2, Name: "Bob", Role: model.RoleChild}
	cara  = model.Member{ID: 3, Name: "Cara", Role: model.RoleChild}
)

type fixture struct {
	defs  *memDefinitions
	execs *memExecutions
	clock *clock.Fixed
	gen   *Generator
	sm    *Machine
}

func dishes() model.TaskDefinition {
	return model.TaskDefinition{
		ID:        10,
		Name:      "Dishes",
		TimeRange: model.TimeRange{Start: model.NewTimeOfDay(18, 0), End: model.NewTimeOfDay(19, 0)},
		Scope:     model.ScopeFamily,
		Point:     5,
		Version:   1,
		Schedule:  model.Recurring{Pattern: model.Daily{}, StartDate: d(2024, 1, 1)},
	}
}

func newFixture(t *testing.T, defs ...model.TaskDefinition) *fixture {
	t.Helper()
	f := &fixture{
		defs:  newMemDefinitions(defs...),
		execs: newMemExecutions(),
		clock: clock.NewFixed(time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)),
	}
	f.gen = NewGenerator(f.defs, f.execs)
	f.execs.defs = f.defs
	f.sm = NewMachine(f.execs, memMembers{alice, bob, cara}, f.clock)
	return f
}

func (f *fixture) generateOne(t *testing.T, date model.Date) int64 {
	t.Helper()
	res, err := f.gen.Generate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, res.TaskExecutionIDs, 1)
	return res.TaskExecutionIDs[0]
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	started, err := f.sm.Start(ctx, id, []int64{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, started.Status)
	require.NotNil(t, started.Snapshot)
	assert.Equal(t, 5, started.Snapshot.FrozenPoint)
	require.NotNil(t, started.StartedAt)

	// raise the live point value after the start
	f.defs.edit(10, func(def *model.TaskDefinition) { def.Point = 20 })

	f.clock.Advance(30 * time.Minute)
	_, err = f.sm.Assign(ctx, id, []int64{alice.ID, bob.ID})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	done, err := f.sm.Complete(ctx, id, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, alice.ID, *done.CompletedBy)
	require.Len(t, done.Participants, 2)
	for _, p := range done.Participants {
		assert.Equal(t, 5, p.EarnedPoint, "member %d", p.MemberID)
	}
	assert.Equal(t, 5, done.Snapshot.FrozenPoint)
	assert.Equal(t, int64(1), done.Snapshot.DefinitionVersion)

	_, err = f.sm.Start(ctx, id, []int64{alice.ID})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestTransitionLegality(t *testing.T) {
	ctx := context.Background()

	type step func(*Machine, int64) error
	start := func(sm *Machine, id int64) error {
		_, err := sm.Start(ctx, id, []int64{alice.ID})
		return err
	}
	assign := func(sm *Machine, id int64) error {
		_, err := sm.Assign(ctx, id, []int64{bob.ID})
		return err
	}
	complete := func(sm *Machine, id int64) error {
		_, err := sm.Complete(ctx, id, alice.ID)
		return err
	}
	cancel := func(sm *Machine, id int64) error {
		_, err := sm.Cancel(ctx, id)
		return err
	}

	tests := []struct {
		name  string
		setup []step
		act   step
		ok    bool
	}{
		{"start not started", nil, start, true},
		{"assign not started", nil, assign, true},
		{"complete not started", nil, complete, false},
		{"cancel not started", nil, cancel, true},
		{"start in progress", []step{start}, start, false},
		{"assign in progress", []step{start}, assign, true},
		{"complete in progress", []step{start}, complete, true},
		{"cancel in progress", []step{start}, cancel, true},
		{"start completed", []step{start, complete}, start, false},
		{"assign completed", []step{start, complete}, assign, false},
		{"complete completed", []step{start, complete}, complete, false},
		{"cancel completed", []step{start, complete}, cancel, false},
		{"start cancelled", []step{cancel}, start, false},
		{"assign cancelled", []step{cancel}, assign, false},
		{"complete cancelled", []step{cancel}, complete, false},
		{"cancel cancelled", []step{cancel}, cancel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, dishes())
			id := f.generateOne(t, d(2024, 1, 10))
			for _, s := range tt.setup {
				require.NoError(t, s(f.sm, id))
			}
			before, err := f.execs.GetByID(ctx, id)
			require.NoError(t, err)

			err = tt.act(f.sm, id)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var te *model.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, id, te.ExecutionID)
			assert.Equal(t, before.Status, te.From)

			after, err := f.execs.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before, after, "failed action must not change the execution")
		})
	}
}

func TestStartRequiresAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	_, err := f.sm.Start(ctx, id, nil)
	assert.ErrorIs(t, err, model.ErrNoAssignee)

	e, err := f.sm.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, e.Status)
	assert.Nil(t, e.Snapshot)
}

func TestStartRejectsUnknownMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	_, err := f.sm.Start(ctx, id, []int64{alice.ID, 99})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUnknownExecution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())

	_, err := f.sm.Start(ctx, 404, []int64{alice.ID})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.sm.Cancel(ctx, 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAssignKeepsJoinTimeForRetainedMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	started, err := f.sm.Start(ctx, id, []int64{alice.ID, bob.ID, bob.ID})
	require.NoError(t, err)
	require.Len(t, started.Participants, 2, "duplicate ids collapse")
	aliceJoined := started.Participants[0].JoinedAt

	f.clock.Advance(time.Hour)
	e, err := f.sm.Assign(ctx, id, []int64{cara.ID, alice.ID})
	require.NoError(t, err)

	assert.Equal(t, []int64{cara.ID, alice.ID}, e.AssigneeIDs())
	p, ok := e.Participant(alice.ID)
	require.True(t, ok)
	assert.Equal(t, aliceJoined, p.JoinedAt)
	p, ok = e.Participant(cara.ID)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().UTC(), p.JoinedAt)
	_, ok = e.Participant(bob.ID)
	assert.False(t, ok)
}

func TestAssignEmptySet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	_, err := f.sm.Assign(ctx, id, []int64{bob.ID})
	require.NoError(t, err)
	e, err := f.sm.Assign(ctx, id, nil)
	require.NoError(t, err, "clearing is allowed before start")
	assert.Empty(t, e.Participants)

	_, err = f.sm.Start(ctx, id, []int64{bob.ID})
	require.NoError(t, err)
	_, err = f.sm.Assign(ctx, id, []int64{})
	assert.ErrorIs(t, err, model.ErrNoAssignee)
}

func TestCancelKeepsSnapshotAndAwardsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	_, err := f.sm.Start(ctx, id, []int64{alice.ID})
	require.NoError(t, err)
	e, err := f.sm.Cancel(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, e.Status)
	assert.NotNil(t, e.Snapshot)
	assert.Nil(t, e.CompletedAt)
	for _, p := range e.Participants {
		assert.Zero(t, p.EarnedPoint)
	}
}

func TestSnapshotImmuneToDefinitionEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	started, err := f.sm.Start(ctx, id, []int64{alice.ID})
	require.NoError(t, err)
	want := *started.Snapshot

	f.defs.edit(10, func(def *model.TaskDefinition) {
		def.Name = "Dishes and counters"
		def.Description = "wipe too"
		def.Point = 50
		def.TimeRange = model.TimeRange{Start: model.NewTimeOfDay(7, 0), End: model.NewTimeOfDay(8, 0)}
	})
	f.defs.edit(10, func(def *model.TaskDefinition) { def.Deleted = true })

	_, err = f.sm.Assign(ctx, id, []int64{bob.ID})
	require.NoError(t, err)
	done, err := f.sm.Complete(ctx, id, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, want, *done.Snapshot)
}

func TestStartSnapshotsDefinitionAtWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	f.execs.beforeDefinition = func() {
		f.defs.edit(10, func(def *model.TaskDefinition) { def.Point = 9 })
	}
	started, err := f.sm.Start(ctx, id, []int64{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, 9, started.Snapshot.FrozenPoint)
	assert.Equal(t, int64(2), started.Snapshot.DefinitionVersion)
}

func TestStartMissingDefinition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, err := f.execs.CreateIfAbsent(ctx, 99, d(2024, 1, 10))
	require.NoError(t, err)

	_, err = f.sm.Start(ctx, id, []int64{alice.ID})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestConcurrentStartsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dishes())
	id := f.generateOne(t, d(2024, 1, 10))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sm.Start(ctx, id, []int64{alice.ID})
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, model.ErrInvalidTransition), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestComputeStatus(t *testing.T) {
	today := d(2024, 1, 10)
	tests := []struct {
		status model.ExecutionStatus
		date   model.Date
		want   DisplayStatus
	}{
		{model.StatusNotStarted, today, DisplayPending},
		{model.StatusInProgress, today, DisplayInProgress},
		{model.StatusNotStarted, today.AddDays(-1), DisplayOverdue},
		{model.StatusInProgress, today.AddDays(-1), DisplayOverdue},
		{model.StatusCompleted, today.AddDays(-1), DisplayCompleted},
		{model.StatusCancelled, today, DisplayCancelled},
		{model.StatusNotStarted, today.AddDays(1), DisplayPending},
	}
	for _, tt := range tests {
		got := ComputeStatus(model.TaskExecution{Status: tt.status, ScheduledDate: tt.date}, today)
		assert.Equal(t, tt.want, got, "%s on %s", tt.status, tt.date)
	}
}
