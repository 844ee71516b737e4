package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/model"
)

var members = []model.Member{
	{ID: 1, Name: "Alice"},
	{ID: 2, Name: "Bob"},
	{ID: 3, Name: "Cara"},
}

func done(id int64, scope model.Scope, point int, at time.Time, who ...int64) model.TaskExecution {
	e := model.TaskExecution{
		ID:            id,
		DefinitionID:  id * 10,
		ScheduledDate: model.DateOf(at),
		Status:        model.StatusCompleted,
		Snapshot:      &model.TaskSnapshot{Name: "task", Scope: scope, FrozenPoint: point},
		CompletedAt:   &at,
		CompletedBy:   &who[0],
	}
	for _, m := range who {
		e.Participants = append(e.Participants, model.Participant{ExecutionID: id, MemberID: m, EarnedPoint: point})
	}
	return e
}

func fixtureExecs() []model.TaskExecution {
	day := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }
	return []model.TaskExecution{
		done(1, model.ScopeFamily, 5, day(10, 18), 1, 2),
		done(2, model.ScopePersonal, 2, day(10, 9), 2),
		done(3, model.ScopeFamily, 4, day(9, 18), 1),
		{ID: 4, Status: model.StatusInProgress, Participants: []model.Participant{{MemberID: 3}}},
		{ID: 5, Status: model.StatusCancelled, Snapshot: &model.TaskSnapshot{FrozenPoint: 9}, Participants: []model.Participant{{MemberID: 3}}},
	}
}

func TestSummaries(t *testing.T) {
	got := Summaries(fixtureExecs(), members, model.NewDate(2024, 1, 10), time.UTC)

	require.Len(t, got, 3)
	assert.Equal(t, DailySummary{MemberID: 1, Date: model.NewDate(2024, 1, 10), PointsEarned: 5, FamilyCompleted: 1}, got[0])
	assert.Equal(t, DailySummary{MemberID: 2, Date: model.NewDate(2024, 1, 10), PointsEarned: 7, FamilyCompleted: 1, PersonalCompleted: 1}, got[1])
	assert.Equal(t, DailySummary{MemberID: 3, Date: model.NewDate(2024, 1, 10)}, got[2])
}

func TestSummariesUseHouseholdZone(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	// 02:00 UTC on the 11th is still the 10th in UTC-8.
	at := time.Date(2024, 1, 11, 2, 0, 0, 0, time.UTC)
	execs := []model.TaskExecution{done(1, model.ScopeFamily, 3, at, 1)}

	got := Summaries(execs, members, model.NewDate(2024, 1, 10), loc)
	assert.Equal(t, 3, got[0].PointsEarned)

	got = Summaries(execs, members, model.NewDate(2024, 1, 11), loc)
	assert.Equal(t, 0, got[0].PointsEarned)
}

func TestHistory(t *testing.T) {
	all := History(fixtureExecs(), HistoryFilter{}, time.UTC)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ExecutionID, "newest first")
	assert.Equal(t, int64(3), all[2].ExecutionID)

	bob := int64(2)
	got := History(fixtureExecs(), HistoryFilter{MemberID: &bob}, time.UTC)
	require.Len(t, got, 2)

	day := model.NewDate(2024, 1, 9)
	got = History(fixtureExecs(), HistoryFilter{From: &day, To: &day}, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ExecutionID)
	assert.Equal(t, 4, got[0].FrozenPoint)

	cara := int64(3)
	assert.Empty(t, History(fixtureExecs(), HistoryFilter{MemberID: &cara}, time.UTC))
}

func TestHistoryUsesSnapshotNotLiveDefinition(t *testing.T) {
	e := done(1, model.ScopeFamily, 5, time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC), 1)
	e.Snapshot.Name = "Dishes"

	got := History([]model.TaskExecution{e}, HistoryFilter{}, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "Dishes", got[0].Name)
	assert.Equal(t, 5, got[0].FrozenPoint)
	assert.Equal(t, model.ScopeFamily, got[0].Scope)
}

func TestLeaderboard(t *testing.T) {
	got := Leaderboard(fixtureExecs(), members)

	require.Len(t, got, 3)
	assert.Equal(t, "Alice", got[0].Member.Name)
	assert.Equal(t, 9, got[0].Points)
	assert.Equal(t, 2, got[0].Completed)
	assert.Equal(t, 1, got[0].Rank)

	assert.Equal(t, "Bob", got[1].Member.Name)
	assert.Equal(t, 7, got[1].Points)
	assert.Equal(t, 2, got[1].Rank)

	assert.Equal(t, "Cara", got[2].Member.Name)
	assert.Zero(t, got[2].Points)
	assert.Equal(t, 3, got[2].Rank)
}

func TestLeaderboardTiesShareRank(t *testing.T) {
	at := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	execs := []model.TaskExecution{done(1, model.ScopeFamily, 5, at, 1, 2)}

	got := Leaderboard(execs, members)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 1, got[1].Rank)
	assert.Equal(t, 3, got[2].Rank)
}
