package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/model"
)

func date(y int, m time.Month, d int) model.Date {
	return model.NewDate(y, m, d)
}

func datePtr(y int, m time.Month, d int) *model.Date {
	v := date(y, m, d)
	return &v
}

func recurringDef(p model.Pattern, start model.Date, end *model.Date) model.TaskDefinition {
	return model.TaskDefinition{
		ID:       1,
		Name:     "chore",
		Scope:    model.ScopeFamily,
		Schedule: model.Recurring{Pattern: p, StartDate: start, EndDate: end},
	}
}

func mustDue(t *testing.T, def model.TaskDefinition, d model.Date) bool {
	t.Helper()
	due, err := IsDue(def, d)
	require.NoError(t, err)
	return due
}

func TestDailySkipWeekends(t *testing.T) {
	def := recurringDef(model.Daily{SkipWeekends: true}, date(2024, 1, 1), nil)

	assert.True(t, mustDue(t, def, date(2024, 1, 5)), "Friday")
	assert.False(t, mustDue(t, def, date(2024, 1, 6)), "Saturday")
	assert.False(t, mustDue(t, def, date(2024, 1, 7)), "Sunday")
	assert.True(t, mustDue(t, def, date(2024, 1, 8)), "Monday")
}

func TestDailyEveryDay(t *testing.T) {
	def := recurringDef(model.Daily{}, date(2024, 2, 27), nil)

	for d := date(2024, 2, 27); d.Before(date(2024, 3, 3)); d = d.AddDays(1) {
		assert.True(t, mustDue(t, def, d), "date %s", d)
	}
	// leap day
	assert.True(t, mustDue(t, def, date(2024, 2, 29)))
	// before start
	assert.False(t, mustDue(t, def, date(2024, 2, 26)))
}

func TestDailyRespectsEndDateInclusive(t *testing.T) {
	def := recurringDef(model.Daily{}, date(2023, 12, 30), datePtr(2024, 1, 2))

	assert.True(t, mustDue(t, def, date(2023, 12, 31)))
	assert.True(t, mustDue(t, def, date(2024, 1, 1)), "year rollover")
	assert.True(t, mustDue(t, def, date(2024, 1, 2)), "end date is inclusive")
	assert.False(t, mustDue(t, def, date(2024, 1, 3)))
}

func TestWeeklyOnlyOnItsDay(t *testing.T) {
	def := recurringDef(model.Weekly{DayOfWeek: time.Monday}, date(2024, 1, 1), datePtr(2024, 3, 31))

	for d := date(2024, 1, 1); !d.After(date(2024, 3, 31)); d = d.AddDays(1) {
		want := d.Weekday() == time.Monday
		assert.Equal(t, want, mustDue(t, def, d), "date %s (%s)", d, d.Weekday())
	}
	assert.False(t, mustDue(t, def, date(2024, 4, 1)), "Monday after end date")
}

func TestMonthlyIncludingFebruary(t *testing.T) {
	def := recurringDef(model.Monthly{DayOfMonth: 15}, date(2024, 1, 1), nil)

	for m := time.January; m <= time.December; m++ {
		assert.True(t, mustDue(t, def, date(2024, m, 15)), "month %s", m)
		assert.False(t, mustDue(t, def, date(2024, m, 14)), "month %s", m)
	}
	assert.True(t, mustDue(t, def, date(2025, 2, 15)), "non-leap February")
}

func TestMonthlyDay28InFebruary(t *testing.T) {
	def := recurringDef(model.Monthly{DayOfMonth: 28}, date(2023, 1, 1), nil)

	assert.True(t, mustDue(t, def, date(2023, 2, 28)))
	assert.True(t, mustDue(t, def, date(2024, 2, 28)))
	assert.False(t, mustDue(t, def, date(2024, 2, 29)))
}

func TestOneTimeExactDateOnly(t *testing.T) {
	def := model.TaskDefinition{ID: 2, Schedule: model.OneTime{Deadline: date(2024, 3, 1)}}

	assert.True(t, mustDue(t, def, date(2024, 3, 1)))
	assert.False(t, mustDue(t, def, date(2024, 2, 29)))
	assert.False(t, mustDue(t, def, date(2024, 3, 2)))
	assert.False(t, mustDue(t, def, date(2025, 3, 1)))
}

func TestInvalidScheduleFailsLoudly(t *testing.T) {
	tests := []struct {
		name     string
		schedule model.Schedule
	}{
		{"end before start", model.Recurring{Pattern: model.Daily{}, StartDate: date(2024, 2, 1), EndDate: datePtr(2024, 1, 1)}},
		{"day of month 29", model.Recurring{Pattern: model.Monthly{DayOfMonth: 29}, StartDate: date(2024, 1, 1)}},
		{"day of month 0", model.Recurring{Pattern: model.Monthly{}, StartDate: date(2024, 1, 1)}},
		{"bad weekday", model.Recurring{Pattern: model.Weekly{DayOfWeek: 9}, StartDate: date(2024, 1, 1)}},
		{"no pattern", model.Recurring{StartDate: date(2024, 1, 1)}},
		{"no schedule", nil},
		{"zero deadline", model.OneTime{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := model.TaskDefinition{ID: 7, Schedule: tt.schedule}
			due, err := IsDue(def, date(2024, 1, 15))
			require.Error(t, err)
			assert.False(t, due)
			assert.True(t, errors.Is(err, model.ErrInvariantViolation))

			var ie *model.InvariantError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, int64(7), ie.ID)
		})
	}
}

func TestOccurrencesClipsToScheduleBounds(t *testing.T) {
	s := model.Recurring{Pattern: model.Weekly{DayOfWeek: time.Wednesday}, StartDate: date(2024, 1, 10), EndDate: datePtr(2024, 1, 31)}

	got, err := Occurrences(s, date(2024, 1, 1), date(2024, 2, 29))
	require.NoError(t, err)

	want := []model.Date{date(2024, 1, 10), date(2024, 1, 17), date(2024, 1, 24), date(2024, 1, 31)}
	assert.Equal(t, want, got)
}

func TestOccurrencesOneTime(t *testing.T) {
	s := model.OneTime{Deadline: date(2024, 3, 1)}

	got, err := Occurrences(s, date(2024, 2, 1), date(2024, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, []model.Date{date(2024, 3, 1)}, got)

	got, err = Occurrences(s, date(2024, 3, 2), date(2024, 3, 31))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOccurrencesRejectsHugeWindow(t *testing.T) {
	s := model.Recurring{Pattern: model.Daily{}, StartDate: date(2000, 1, 1)}
	_, err := Occurrences(s, date(2000, 1, 1), date(2010, 1, 1))
	assert.Error(t, err)
}

func TestOccurrencesReversedWindow(t *testing.T) {
	s := model.Recurring{Pattern: model.Daily{}, StartDate: date(2024, 1, 1)}
	got, err := Occurrences(s, date(2024, 2, 1), date(2024, 1, 1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNext(t *testing.T) {
	s := model.Recurring{Pattern: model.Monthly{DayOfMonth: 3}, StartDate: date(2024, 1, 1)}

	next, ok, err := Next(s, date(2024, 1, 4))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2024, 2, 3), next)

	_, ok, err = Next(model.OneTime{Deadline: date(2024, 1, 1)}, date(2024, 1, 2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPatternRoundTrip(t *testing.T) {
	tests := []struct {
		pattern model.Pattern
		rule    string
	}{
		{model.Daily{}, "FREQ=DAILY"},
		{model.Daily{SkipWeekends: true}, "FREQ=DAILY;BYDAY=MO,TU,WE,TH,FR"},
		{model.Weekly{DayOfWeek: time.Sunday}, "FREQ=WEEKLY;BYDAY=SU"},
		{model.Monthly{DayOfMonth: 15}, "FREQ=MONTHLY;BYMONTHDAY=15"},
	}

	for _, tt := range tests {
		s, err := FormatPattern(tt.pattern)
		require.NoError(t, err)
		assert.Equal(t, tt.rule, s)

		p, err := ParsePattern(s)
		require.NoError(t, err)
		assert.Equal(t, tt.pattern, p)
	}
}

func TestParseRejectsUnsupported(t *testing.T) {
	for _, in := range []string{
		"",
		"BYDAY=MO",
		"FREQ=YEARLY",
		"FREQ=WEEKLY;INTERVAL=2",
		"FREQ=MONTHLY;BYMONTHDAY=31",
		"FREQ=WEEKLY;BYDAY=XX",
		"FREQ",
	} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestPatternRejectsOddShapes(t *testing.T) {
	for _, in := range []string{
		"FREQ=DAILY;BYDAY=MO",
		"FREQ=WEEKLY",
		"FREQ=WEEKLY;BYDAY=MO,TU",
		"FREQ=MONTHLY",
	} {
		_, err := ParsePattern(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Repeats on weekdays", Describe(model.Recurring{Pattern: model.Daily{SkipWeekends: true}, StartDate: date(2024, 1, 1)}))
	assert.Equal(t, "Repeats weekly on Monday until 2024-06-30", Describe(model.Recurring{Pattern: model.Weekly{DayOfWeek: time.Monday}, StartDate: date(2024, 1, 1), EndDate: datePtr(2024, 6, 30)}))
	assert.Equal(t, "Repeats monthly on day 15", Describe(model.Recurring{Pattern: model.Monthly{DayOfMonth: 15}, StartDate: date(2024, 1, 1)}))
	assert.Equal(t, "Once, on 2024-03-01", Describe(model.OneTime{Deadline: date(2024, 3, 1)}))
}

func TestDefinitionOccurrencesWrapsInvariant(t *testing.T) {
	def := recurringDef(model.Monthly{DayOfMonth: 31}, date(2024, 1, 1), nil)
	def.ID = 5

	_, err := DefinitionOccurrences(def, date(2024, 1, 1), date(2024, 1, 31))
	require.ErrorIs(t, err, model.ErrInvariantViolation)
	var ie *model.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, int64(5), ie.ID)

	_, err = DefinitionOccurrences(recurringDef(model.Daily{}, date(2000, 1, 1), nil), date(2000, 1, 1), date(2010, 1, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrInvariantViolation, "an oversized window is the caller's mistake")

	got, err := DefinitionOccurrences(recurringDef(model.Weekly{DayOfWeek: time.Monday}, date(2024, 1, 1), nil), date(2024, 1, 1), date(2024, 1, 14))
	require.NoError(t, err)
	assert.Equal(t, []model.Date{date(2024, 1, 1), date(2024, 1, 8)}, got)
}
