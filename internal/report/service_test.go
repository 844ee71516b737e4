package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

type recordingQuerier struct {
	filters []store.ExecutionFilter
	execs   []model.TaskExecution
}

func (q *recordingQuerier) List(_ context.Context, f store.ExecutionFilter) ([]model.TaskExecution, error) {
	q.filters = append(q.filters, f)
	return q.execs, nil
}

type staticMembers []model.Member

func (m staticMembers) List(context.Context) ([]model.Member, error) { return m, nil }

func TestServiceBoundsCompletedQuery(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC-5", -5*3600)
	q := &recordingQuerier{}
	svc := NewService(q, staticMembers(members), nil, loc)

	day := model.NewDate(2024, 1, 10)
	dayStart := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)

	_, err := svc.DailySummaries(ctx, day)
	require.NoError(t, err)
	from := model.NewDate(2024, 1, 1)
	_, err = svc.History(ctx, HistoryFilter{From: &from, To: &day})
	require.NoError(t, err)
	_, err = svc.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	_, err = svc.Leaderboard(ctx)
	require.NoError(t, err)

	require.Len(t, q.filters, 4)
	for _, f := range q.filters {
		assert.Equal(t, []model.ExecutionStatus{model.StatusCompleted}, f.Status)
	}

	summary := q.filters[0]
	require.NotNil(t, summary.CompletedFrom)
	require.NotNil(t, summary.CompletedTo)
	assert.True(t, dayStart.Equal(*summary.CompletedFrom))
	assert.True(t, dayStart.AddDate(0, 0, 1).Equal(*summary.CompletedTo))

	history := q.filters[1]
	require.NotNil(t, history.CompletedFrom)
	require.NotNil(t, history.CompletedTo)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Equal(*history.CompletedFrom))
	assert.True(t, dayStart.AddDate(0, 0, 1).Equal(*history.CompletedTo), "to is inclusive")

	for _, f := range q.filters[2:] {
		assert.Nil(t, f.CompletedFrom)
		assert.Nil(t, f.CompletedTo)
	}
}
