package recurrence

import (
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

// MaxWindowDays bounds Occurrences so a typo in a query cannot walk
// centuries of calendar.
const MaxWindowDays = 731

// Occurrences returns every date in [from, to] on which s is due, in order.
func Occurrences(s model.Schedule, from, to model.Date) ([]model.Date, error) {
	if to.Before(from) {
		return nil, nil
	}
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}
	if err := model.ValidateSchedule(s); err != nil {
		return nil, err
	}

	// Clip to the schedule's own bounds before walking.
	switch s := s.(type) {
	case model.OneTime:
		if s.Deadline.Before(from) || s.Deadline.After(to) {
			return nil, nil
		}
		return []model.Date{s.Deadline}, nil
	case model.Recurring:
		if from.Before(s.StartDate) {
			from = s.StartDate
		}
		if s.EndDate != nil && to.After(*s.EndDate) {
			to = *s.EndDate
		}
	}

	var dates []model.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		due, err := ScheduleDue(s, d)
		if err != nil {
			return nil, err
		}
		if due {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// DefinitionOccurrences is Occurrences for def. A broken schedule yields an
// error wrapping model.ErrInvariantViolation, as IsDue does.
func DefinitionOccurrences(def model.TaskDefinition, from, to model.Date) ([]model.Date, error) {
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}
	if err := model.ValidateSchedule(def.Schedule); err != nil {
		return nil, &model.InvariantError{Entity: "task definition", ID: def.ID, Msg: err.Error()}
	}
	return Occurrences(def.Schedule, from, to)
}

func checkWindow(from, to model.Date) error {
	if span := from.DaysUntil(to); span > MaxWindowDays {
		return fmt.Errorf("window of %d days exceeds limit of %d", span, MaxWindowDays)
	}
	return nil
}

// Next returns the first due date on or after from, looking at most
// MaxWindowDays ahead. ok is false when nothing falls in that horizon.
func Next(s model.Schedule, from model.Date) (model.Date, bool, error) {
	dates, err := Occurrences(s, from, from.AddDays(MaxWindowDays))
	if err != nil || len(dates) == 0 {
		return model.Date{}, false, err
	}
	return dates[0], true, nil
}
