// Package assignment decides which household members a task concerns.
//
// Two policies exist. Visibility answers "whose list does this show up on":
// family tasks are visible to everyone, personal tasks only to their owner.
// Participation answers "who is doing it": the execution's participant set.
package assignment

import (
	"slices"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// Item pairs a definition with its execution on Date. Execution is nil when
// nothing has been generated yet.
type Item struct {
	Date       model.Date           `json:"date"`
	Definition model.TaskDefinition `json:"definition"`
	Execution  *model.TaskExecution `json:"execution,omitempty"`
}

// Start is the instant the item is expected to begin, in loc.
func (it Item) Start(loc *time.Location) time.Time {
	return it.Date.At(it.Definition.TimeRange.Start, loc)
}

// Assignments maps member id to the items relevant to that member. Maps
// built here contain a key for every member, even when the slice is empty.
type Assignments map[int64][]Item

// For returns the items for memberID.
func (a Assignments) For(memberID int64) []Item {
	return a[memberID]
}

// ByVisibility groups items by the members who should see them.
func ByVisibility(items []Item, members []model.Member) Assignments {
	out := emptyFor(members)
	for _, it := range items {
		switch it.Definition.Scope {
		case model.ScopeFamily:
			for _, m := range members {
				out[m.ID] = append(out[m.ID], it)
			}
		case model.ScopePersonal:
			if it.Definition.OwnerID == nil {
				continue
			}
			owner := *it.Definition.OwnerID
			if _, ok := out[owner]; ok {
				out[owner] = append(out[owner], it)
			}
		}
	}
	return out
}

// ByParticipant groups items by the members taking part in their execution.
// Items without an execution belong to nobody. A personal task only ever
// lands on its owner's entry, and only when the owner is a participant.
func ByParticipant(items []Item, members []model.Member) Assignments {
	out := emptyFor(members)
	for _, it := range items {
		if it.Execution == nil {
			continue
		}
		for _, p := range it.Execution.Participants {
			if !Visible(it.Definition, p.MemberID) {
				continue
			}
			if _, ok := out[p.MemberID]; ok {
				out[p.MemberID] = append(out[p.MemberID], it)
			}
		}
	}
	return out
}

// Visible reports whether memberID may see def.
func Visible(def model.TaskDefinition, memberID int64) bool {
	switch def.Scope {
	case model.ScopeFamily:
		return true
	case model.ScopePersonal:
		return def.IsPersonalFor(memberID)
	}
	return false
}

// Audience lists the members who should hear about changes to exec. Nil
// means everyone: family tasks are visible to the whole household. Personal
// tasks reach the owner and anyone taking part.
func Audience(def model.TaskDefinition, exec *model.TaskExecution) []int64 {
	if def.Scope == model.ScopeFamily {
		return nil
	}
	var ids []int64
	if def.OwnerID != nil {
		ids = append(ids, *def.OwnerID)
	}
	if exec != nil {
		for _, id := range exec.AssigneeIDs() {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

func emptyFor(members []model.Member) Assignments {
	out := make(Assignments, len(members))
	for _, m := range members {
		out[m.ID] = []Item{}
	}
	return out
}
