// Package report derives dashboards and history from executions. Nothing
// here is stored: every figure is recomputed from executions, their
// participants and their snapshots, so later edits to a definition never
// change what history reports.
package report

import (
	"sort"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// HistoryEntry is one completed execution as it was when completed.
type HistoryEntry struct {
	ExecutionID   int64               `json:"execution_id"`
	DefinitionID  int64               `json:"definition_id"`
	ScheduledDate model.Date          `json:"scheduled_date"`
	Name          string              `json:"name"`
	Scope         model.Scope         `json:"scope"`
	FrozenPoint   int                 `json:"frozen_point"`
	CompletedAt   time.Time           `json:"completed_at"`
	CompletedBy   *int64              `json:"completed_by,omitempty"`
	Participants  []model.Participant `json:"participants"`
}

// HistoryFilter selects completed executions. From and To bound the
// household calendar day of completion, inclusive.
type HistoryFilter struct {
	MemberID *int64
	From     *model.Date
	To       *model.Date
}

// History returns completed executions matching f, newest first.
func History(execs []model.TaskExecution, f HistoryFilter, loc *time.Location) []HistoryEntry {
	out := []HistoryEntry{}
	for i := range execs {
		e := &execs[i]
		if !completed(e) {
			continue
		}
		if f.MemberID != nil {
			if _, ok := e.Participant(*f.MemberID); !ok {
				continue
			}
		}
		day := model.DateOf(e.CompletedAt.In(loc))
		if f.From != nil && day.Before(*f.From) {
			continue
		}
		if f.To != nil && day.After(*f.To) {
			continue
		}
		out = append(out, HistoryEntry{
			ExecutionID:   e.ID,
			DefinitionID:  e.DefinitionID,
			ScheduledDate: e.ScheduledDate,
			Name:          e.Snapshot.Name,
			Scope:         e.Snapshot.Scope,
			FrozenPoint:   e.Snapshot.FrozenPoint,
			CompletedAt:   *e.CompletedAt,
			CompletedBy:   e.CompletedBy,
			Participants:  e.Participants,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out
}

// DailySummary is what one member achieved on one day.
type DailySummary struct {
	MemberID          int64      `json:"member_id"`
	Date              model.Date `json:"date"`
	PointsEarned      int        `json:"points_earned"`
	FamilyCompleted   int        `json:"family_completed"`
	PersonalCompleted int        `json:"personal_completed"`
}

// Summaries returns a DailySummary for every member, in member order, for
// executions completed on day in loc.
func Summaries(execs []model.TaskExecution, members []model.Member, day model.Date, loc *time.Location) []DailySummary {
	out := make([]DailySummary, 0, len(members))
	index := make(map[int64]int, len(members))
	for i, m := range members {
		index[m.ID] = i
		out = append(out, DailySummary{MemberID: m.ID, Date: day})
	}

	for i := range execs {
		e := &execs[i]
		if !completed(e) || !model.DateOf(e.CompletedAt.In(loc)).Equal(day) {
			continue
		}
		for _, p := range e.Participants {
			j, ok := index[p.MemberID]
			if !ok {
				continue
			}
			out[j].PointsEarned += p.EarnedPoint
			switch e.Snapshot.Scope {
			case model.ScopeFamily:
				out[j].FamilyCompleted++
			case model.ScopePersonal:
				out[j].PersonalCompleted++
			}
		}
	}
	return out
}

// LeaderboardEntry totals a member's lifetime earnings.
type LeaderboardEntry struct {
	Rank      int          `json:"rank"`
	Member    model.Member `json:"member"`
	Points    int          `json:"points"`
	Completed int          `json:"completed"`
}

// Leaderboard ranks members by earned points. Ties share a rank and keep
// member order.
func Leaderboard(execs []model.TaskExecution, members []model.Member) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(members))
	index := make(map[int64]int, len(members))
	for i, m := range members {
		index[m.ID] = i
		out = append(out, LeaderboardEntry{Member: m})
	}

	for i := range execs {
		e := &execs[i]
		if !completed(e) {
			continue
		}
		for _, p := range e.Participants {
			if j, ok := index[p.MemberID]; ok {
				out[j].Points += p.EarnedPoint
				out[j].Completed++
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

func completed(e *model.TaskExecution) bool {
	return e.Status == model.StatusCompleted && e.CompletedAt != nil && e.Snapshot != nil
}
