package report

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/model"
)

func TestCalendarFeed(t *testing.T) {
	loc := time.UTC
	def := model.TaskDefinition{
		ID:        4,
		Name:      "Water plants",
		Scope:     model.ScopeFamily,
		TimeRange: model.TimeRange{Start: model.NewTimeOfDay(7, 30), End: model.NewTimeOfDay(7, 45)},
	}
	started := &model.TaskExecution{
		ID:       9,
		Status:   model.StatusInProgress,
		Snapshot: &model.TaskSnapshot{Name: "Water the plants", TimeRange: def.TimeRange},
	}
	items := []assignment.Item{
		{Date: model.NewDate(2024, 1, 10), Definition: def, Execution: started},
		{Date: model.NewDate(2024, 1, 11), Definition: def},
	}

	out := Calendar(model.Member{ID: 1, Name: "Alice"}, items, loc, time.Date(2024, 1, 10, 6, 0, 0, 0, loc))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "Water the plants", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "chore-4-2024-01-10@chorely", events[0].GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Water plants", events[1].GetProperty(ical.ComponentPropertySummary).Value)

	start, err := events[1].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 11, 7, 30, 0, 0, loc)))
	assert.Contains(t, out, "X-WR-CALNAME:Chores for Alice")
}
