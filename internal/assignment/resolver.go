package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
)

// ExecutionLister reads the executions scheduled on one date.
type ExecutionLister interface {
	ListByDate(ctx context.Context, date model.Date) ([]model.TaskExecution, error)
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Resolver answers per-member task questions for notification jobs and
// dashboards.
type Resolver struct {
	definitions chore.DefinitionStore
	executions  ExecutionLister
	members     chore.MemberDirectory
	loc         *time.Location

	// OnInvalid, when set, is told about definitions skipped because their
	// schedule breaks an invariant.
	OnInvalid func(def model.TaskDefinition, err error)
}

// NewResolver returns a Resolver that interprets dates and times of day in loc.
func NewResolver(ds chore.DefinitionStore, el ExecutionLister, md chore.MemberDirectory, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{definitions: ds, executions: el, members: md, loc: loc}
}

// Pending returns, per member, the unfinished executions for date that the
// member can see. Unstarted executions of deleted definitions are dropped;
// ones already in progress stay until someone finishes or cancels them.
func (r *Resolver) Pending(ctx context.Context, date model.Date) (Assignments, error) {
	members, items, err := r.day(ctx, date, func(e model.TaskExecution, def *model.TaskDefinition) bool {
		if e.Status.IsTerminal() {
			return false
		}
		return !(def.Deleted && e.Status == model.StatusNotStarted)
	})
	if err != nil {
		return nil, err
	}
	return ByVisibility(items, members), nil
}

// Responsible returns, per member, the executions on date that member is
// taking part in. Cancelled executions are left out; completed ones stay so
// the day's credit is visible.
func (r *Resolver) Responsible(ctx context.Context, date model.Date) (Assignments, error) {
	members, items, err := r.day(ctx, date, func(e model.TaskExecution, _ *model.TaskDefinition) bool {
		return e.Status != model.StatusCancelled
	})
	if err != nil {
		return nil, err
	}
	return ByParticipant(items, members), nil
}

func (r *Resolver) day(ctx context.Context, date model.Date, keep func(model.TaskExecution, *model.TaskDefinition) bool) ([]model.Member, []Item, error) {
	members, err := r.members.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	execs, err := r.executions.ListByDate(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("list executions: %w", err)
	}

	var items []Item
	for i := range execs {
		e := execs[i]
		def, err := r.definitions.GetByID(ctx, e.DefinitionID)
		if err != nil {
			return nil, nil, fmt.Errorf("get definition %d: %w", e.DefinitionID, err)
		}
		if def == nil || !keep(e, def) {
			continue
		}
		items = append(items, Item{Date: date, Definition: *def, Execution: &e})
	}
	return members, items, nil
}

// Upcoming returns, per member, the occurrences whose start time falls in w,
// joined with any execution already generated for them. Occurrences whose
// execution is completed or cancelled are left out. A definition with an
// invalid schedule is skipped and reported to OnInvalid.
func (r *Resolver) Upcoming(ctx context.Context, w Window) (Assignments, error) {
	if !w.End.After(w.Start) {
		return nil, fmt.Errorf("empty window %s..%s", w.Start, w.End)
	}
	members, err := r.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defs, err := r.definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	from := model.DateOf(w.Start.In(r.loc))
	to := model.DateOf(w.End.In(r.loc))
	byDate := make(map[model.Date]map[int64]*model.TaskExecution)

	var items []Item
	for _, def := range defs {
		dates, err := recurrence.DefinitionOccurrences(def, from, to)
		if errors.Is(err, model.ErrInvariantViolation) {
			if r.OnInvalid != nil {
				r.OnInvalid(def, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("definition %d: %w", def.ID, err)
		}
		for _, day := range dates {
			if !w.Contains(day.At(def.TimeRange.Start, r.loc)) {
				continue
			}
			known, ok := byDate[day]
			if !ok {
				known, err = r.loadDay(ctx, day)
				if err != nil {
					return nil, err
				}
				byDate[day] = known
			}
			e := known[def.ID]
			if e != nil && e.Status.IsTerminal() {
				continue
			}
			items = append(items, Item{Date: day, Definition: def, Execution: e})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Start(r.loc).Before(items[j].Start(r.loc))
	})
	return ByVisibility(items, members), nil
}

func (r *Resolver) loadDay(ctx context.Context, day model.Date) (map[int64]*model.TaskExecution, error) {
	execs, err := r.executions.ListByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list executions for %s: %w", day, err)
	}
	out := make(map[int64]*model.TaskExecution, len(execs))
	for i := range execs {
		out[execs[i].DefinitionID] = &execs[i]
	}
	return out, nil
}
