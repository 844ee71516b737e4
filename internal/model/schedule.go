package model

import (
	"errors"
	"fmt"
	"time"
)

// Schedule is either Recurring or OneTime. The set is closed; switch on it
// exhaustively.
type Schedule interface {
	isSchedule()
}

// Pattern is Daily, Weekly or Monthly.
type Pattern interface {
	isPattern()
}

type Recurring struct {
	Pattern   Pattern
	StartDate Date
	EndDate   *Date
}

type OneTime struct {
	Deadline Date
}

type Daily struct {
	SkipWeekends bool
}

type Weekly struct {
	DayOfWeek time.Weekday
}

// Monthly days are limited to 1..28 so every month has the day.
type Monthly struct {
	DayOfMonth int
}

func (Recurring) isSchedule() {}
func (OneTime) isSchedule()   {}

func (Daily) isPattern()   {}
func (Weekly) isPattern()  {}
func (Monthly) isPattern() {}

const MaxDayOfMonth = 28

// Contains reports whether d falls inside the recurrence's date range.
func (r Recurring) Contains(d Date) bool {
	if d.Before(r.StartDate) {
		return false
	}
	return r.EndDate == nil || !d.After(*r.EndDate)
}

// ValidateSchedule returns an error describing the first broken invariant.
func ValidateSchedule(s Schedule) error {
	switch s := s.(type) {
	case Recurring:
		if s.StartDate.IsZero() {
			return errors.New("recurring schedule requires a start date")
		}
		if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
			return fmt.Errorf("end date %s is before start date %s", s.EndDate, s.StartDate)
		}
		return validatePattern(s.Pattern)
	case OneTime:
		if s.Deadline.IsZero() {
			return errors.New("one-time schedule requires a deadline")
		}
		return nil
	case nil:
		return errors.New("schedule is required")
	default:
		return fmt.Errorf("unknown schedule type %T", s)
	}
}

func validatePattern(p Pattern) error {
	switch p := p.(type) {
	case Daily:
		return nil
	case Weekly:
		if p.DayOfWeek < time.Sunday || p.DayOfWeek > time.Saturday {
			return fmt.Errorf("invalid day of week %d", p.DayOfWeek)
		}
		return nil
	case Monthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > MaxDayOfMonth {
			return fmt.Errorf("day of month %d outside 1..%d", p.DayOfMonth, MaxDayOfMonth)
		}
		return nil
	case nil:
		return errors.New("recurring schedule requires a pattern")
	default:
		return fmt.Errorf("unknown pattern type %T", p)
	}
}
