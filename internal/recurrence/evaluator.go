// Package recurrence decides which calendar dates a task schedule falls on.
// Everything here is pure: no clock, no storage.
package recurrence

import (
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

// IsDue reports whether def is due on date. Callers filter deleted
// definitions first. A definition whose schedule breaks an invariant yields
// an error wrapping model.ErrInvariantViolation rather than false.
func IsDue(def model.TaskDefinition, date model.Date) (bool, error) {
	due, err := ScheduleDue(def.Schedule, date)
	if err != nil {
		return false, &model.InvariantError{Entity: "task definition", ID: def.ID, Msg: err.Error()}
	}
	return due, nil
}

// ScheduleDue evaluates a bare schedule.
func ScheduleDue(s model.Schedule, date model.Date) (bool, error) {
	if err := model.ValidateSchedule(s); err != nil {
		return false, err
	}

	switch s := s.(type) {
	case model.OneTime:
		return date.Equal(s.Deadline), nil
	case model.Recurring:
		if !s.Contains(date) {
			return false, nil
		}
		return patternMatches(s.Pattern, date)
	default:
		return false, fmt.Errorf("unknown schedule type %T", s)
	}
}

func patternMatches(p model.Pattern, date model.Date) (bool, error) {
	switch p := p.(type) {
	case model.Daily:
		return !(p.SkipWeekends && date.IsWeekend()), nil
	case model.Weekly:
		return date.Weekday() == p.DayOfWeek, nil
	case model.Monthly:
		return date.Day() == p.DayOfMonth, nil
	default:
		return false, fmt.Errorf("unknown pattern type %T", p)
	}
}
