package report

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/model"
)

// Calendar renders items as an iCalendar feed for member. Started
// executions use their snapshot so the feed matches what is being done.
func Calendar(member model.Member, items []assignment.Item, loc *time.Location, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//chorely//chores//EN")
	cal.SetXWRCalName(fmt.Sprintf("Chores for %s", member.Name))
	cal.SetXWRTimezone(loc.String())

	for _, it := range items {
		name, desc, tr := it.Definition.Name, it.Definition.Description, it.Definition.TimeRange
		if it.Execution != nil && it.Execution.Snapshot != nil {
			name, desc, tr = it.Execution.Snapshot.Name, it.Execution.Snapshot.Description, it.Execution.Snapshot.TimeRange
		}

		ev := cal.AddEvent(fmt.Sprintf("chore-%d-%s@chorely", it.Definition.ID, it.Date))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(name)
		if desc != "" {
			ev.SetDescription(desc)
		}
		ev.SetStartAt(it.Date.At(tr.Start, loc))
		ev.SetEndAt(it.Date.At(tr.End, loc))
		if it.Execution != nil && it.Execution.Status == model.StatusInProgress {
			ev.SetStatus(ical.ObjectStatusInProcess)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}
