package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

var weekdaysOnly = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Rule is the persisted RRULE subset that encodes a model.Pattern.
// Date bounds live in their own columns, so UNTIL and COUNT are not used.
type Rule struct {
	Freq       Freq
	ByDay      []time.Weekday // DAILY: MO-FR means skip weekends; WEEKLY: exactly one day
	ByMonthDay int            // MONTHLY only
}

// Parse parses an RRULE string like "FREQ=WEEKLY;BYDAY=MO".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	var r Rule
	var hasFreq bool

	parts := strings.Split(rule, ";")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "BYDAY":
			days := strings.Split(val, ",")
			for _, d := range days {
				wd, ok := dayNames[strings.TrimSpace(d)]
				if !ok {
					return Rule{}, fmt.Errorf("unknown day: %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > model.MaxDayOfMonth {
				return Rule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			r.ByMonthDay = n

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}

	return r, nil
}

// String serializes the rule back to an RRULE string.
func (r Rule) String() string {
	var parts []string
	parts = append(parts, "FREQ="+freqNames[r.Freq])

	if len(r.ByDay) > 0 {
		var days []string
		for _, d := range r.ByDay {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}

	if r.ByMonthDay > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}

	return strings.Join(parts, ";")
}

// FromPattern encodes p as a Rule.
func FromPattern(p model.Pattern) (Rule, error) {
	switch p := p.(type) {
	case model.Daily:
		r := Rule{Freq: Daily}
		if p.SkipWeekends {
			r.ByDay = append([]time.Weekday(nil), weekdaysOnly...)
		}
		return r, nil
	case model.Weekly:
		return Rule{Freq: Weekly, ByDay: []time.Weekday{p.DayOfWeek}}, nil
	case model.Monthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > model.MaxDayOfMonth {
			return Rule{}, fmt.Errorf("invalid day of month %d", p.DayOfMonth)
		}
		return Rule{Freq: Monthly, ByMonthDay: p.DayOfMonth}, nil
	default:
		return Rule{}, fmt.Errorf("unknown pattern type %T", p)
	}
}

// Pattern decodes the rule. Only the shapes FromPattern produces are accepted.
func (r Rule) Pattern() (model.Pattern, error) {
	switch r.Freq {
	case Daily:
		if len(r.ByDay) == 0 {
			return model.Daily{}, nil
		}
		if sameDays(r.ByDay, weekdaysOnly) {
			return model.Daily{SkipWeekends: true}, nil
		}
		return nil, fmt.Errorf("DAILY rule supports only BYDAY=MO,TU,WE,TH,FR")
	case Weekly:
		if len(r.ByDay) != 1 {
			return nil, fmt.Errorf("WEEKLY rule needs exactly one BYDAY, got %d", len(r.ByDay))
		}
		return model.Weekly{DayOfWeek: r.ByDay[0]}, nil
	case Monthly:
		if r.ByMonthDay == 0 {
			return nil, fmt.Errorf("MONTHLY rule needs BYMONTHDAY")
		}
		return model.Monthly{DayOfMonth: r.ByMonthDay}, nil
	}
	return nil, fmt.Errorf("unknown frequency %d", r.Freq)
}

// FormatPattern is FromPattern followed by String.
func FormatPattern(p model.Pattern) (string, error) {
	r, err := FromPattern(p)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// ParsePattern is Parse followed by Pattern.
func ParsePattern(s string) (model.Pattern, error) {
	r, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return r.Pattern()
}

func sameDays(a, b []time.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[time.Weekday]bool, len(a))
	for _, d := range a {
		seen[d] = true
	}
	for _, d := range b {
		if !seen[d] {
			return false
		}
	}
	return true
}

// Describe returns a human-readable description of a schedule.
func Describe(s model.Schedule) string {
	switch s := s.(type) {
	case model.OneTime:
		return "Once, on " + s.Deadline.String()
	case model.Recurring:
		var desc string
		switch p := s.Pattern.(type) {
		case model.Daily:
			desc = "Repeats daily"
			if p.SkipWeekends {
				desc = "Repeats on weekdays"
			}
		case model.Weekly:
			desc = "Repeats weekly on " + p.DayOfWeek.String()
		case model.Monthly:
			desc = fmt.Sprintf("Repeats monthly on day %d", p.DayOfMonth)
		}
		if s.EndDate != nil {
			desc += " until " + s.EndDate.String()
		}
		return desc
	}
	return ""
}
