package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduleSpec is the wire form of a Schedule.
type ScheduleSpec struct {
	Kind         string `json:"kind"`
	Pattern      string `json:"pattern,omitempty"`
	SkipWeekends bool   `json:"skip_weekends,omitempty"`
	DayOfWeek    string `json:"day_of_week,omitempty"`
	DayOfMonth   int    `json:"day_of_month,omitempty"`
	StartDate    *Date  `json:"start_date,omitempty"`
	EndDate      *Date  `json:"end_date,omitempty"`
	Deadline     *Date  `json:"deadline,omitempty"`
}

const (
	ScheduleKindRecurring = "recurring"
	ScheduleKindOneTime   = "one_time"
)

// SpecOf converts a Schedule to its wire form.
func SpecOf(s Schedule) ScheduleSpec {
	switch s := s.(type) {
	case OneTime:
		d := s.Deadline
		return ScheduleSpec{Kind: ScheduleKindOneTime, Deadline: &d}
	case Recurring:
		start := s.StartDate
		spec := ScheduleSpec{Kind: ScheduleKindRecurring, StartDate: &start, EndDate: s.EndDate}
		switch p := s.Pattern.(type) {
		case Daily:
			spec.Pattern = "daily"
			spec.SkipWeekends = p.SkipWeekends
		case Weekly:
			spec.Pattern = "weekly"
			spec.DayOfWeek = strings.ToLower(p.DayOfWeek.String())
		case Monthly:
			spec.Pattern = "monthly"
			spec.DayOfMonth = p.DayOfMonth
		}
		return spec
	}
	return ScheduleSpec{}
}

// Schedule converts the wire form back, validating it.
func (s ScheduleSpec) Schedule() (Schedule, error) {
	var out Schedule
	switch s.Kind {
	case ScheduleKindOneTime:
		if s.Deadline == nil {
			return nil, fmt.Errorf("one_time schedule requires deadline")
		}
		out = OneTime{Deadline: *s.Deadline}
	case ScheduleKindRecurring:
		if s.StartDate == nil {
			return nil, fmt.Errorf("recurring schedule requires start_date")
		}
		r := Recurring{StartDate: *s.StartDate, EndDate: s.EndDate}
		switch s.Pattern {
		case "daily":
			r.Pattern = Daily{SkipWeekends: s.SkipWeekends}
		case "weekly":
			wd, ok := weekdayNames[strings.ToLower(s.DayOfWeek)]
			if !ok {
				return nil, fmt.Errorf("unknown day_of_week %q", s.DayOfWeek)
			}
			r.Pattern = Weekly{DayOfWeek: wd}
		case "monthly":
			r.Pattern = Monthly{DayOfMonth: s.DayOfMonth}
		default:
			return nil, fmt.Errorf("unknown pattern %q", s.Pattern)
		}
		out = r
	default:
		return nil, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	if err := ValidateSchedule(out); err != nil {
		return nil, err
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type definitionJSON struct {
	definitionAlias
	Schedule ScheduleSpec `json:"schedule"`
}

type definitionAlias TaskDefinition

func (d TaskDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{definitionAlias: definitionAlias(d), Schedule: SpecOf(d.Schedule)})
}
