package report

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

// ExecutionQuerier is the read side of the execution store.
type ExecutionQuerier interface {
	List(ctx context.Context, f store.ExecutionFilter) ([]model.TaskExecution, error)
}

// Service loads executions and applies the projections in this package.
type Service struct {
	executions ExecutionQuerier
	members    chore.MemberDirectory
	resolver   *assignment.Resolver
	loc        *time.Location
}

// NewService creates a Service. Day boundaries for history and summaries
// are taken in loc.
func NewService(eq ExecutionQuerier, md chore.MemberDirectory, r *assignment.Resolver, loc *time.Location) *Service {
	return &Service{executions: eq, members: md, resolver: r, loc: loc}
}

// completed lists completed executions, optionally for one participant and
// for completion days from..to (inclusive, in s.loc).
func (s *Service) completed(ctx context.Context, memberID *int64, from, to *model.Date) ([]model.TaskExecution, error) {
	f := store.ExecutionFilter{
		Status:   []model.ExecutionStatus{model.StatusCompleted},
		MemberID: memberID,
	}
	if from != nil {
		start := from.In(s.loc)
		f.CompletedFrom = &start
	}
	if to != nil {
		end := to.AddDays(1).In(s.loc)
		f.CompletedTo = &end
	}
	execs, err := s.executions.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list completed executions: %w", err)
	}
	return execs, nil
}

func (s *Service) History(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	execs, err := s.completed(ctx, f.MemberID, f.From, f.To)
	if err != nil {
		return nil, err
	}
	return History(execs, f, s.loc), nil
}

func (s *Service) DailySummaries(ctx context.Context, day model.Date) ([]DailySummary, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	execs, err := s.completed(ctx, nil, &day, &day)
	if err != nil {
		return nil, err
	}
	return Summaries(execs, members, day, s.loc), nil
}

func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	execs, err := s.completed(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return Leaderboard(execs, members), nil
}

// MemberCalendar renders the next days of a member's visible tasks as an
// iCalendar feed.
func (s *Service) MemberCalendar(ctx context.Context, memberID int64, now time.Time, days int) (string, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list members: %w", err)
	}
	var member *model.Member
	for i := range members {
		if members[i].ID == memberID {
			member = &members[i]
			break
		}
	}
	if member == nil {
		return "", model.NotFoundError("member", memberID)
	}

	start := model.DateOf(now.In(s.loc))
	w := assignment.Window{Start: start.In(s.loc), End: start.AddDays(days).In(s.loc)}
	upcoming, err := s.resolver.Upcoming(ctx, w)
	if err != nil {
		return "", err
	}
	return Calendar(*member, upcoming.For(memberID), s.loc, now), nil
}
