package chore

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
)

// Machine drives executions through their lifecycle. Each operation is one
// ExecutionStore.Update, so concurrent calls on the same execution serialize
// and at most one of two racing starts can succeed.
type Machine struct {
	executions ExecutionStore
	members    MemberDirectory
	clock      clock.Clock
}

// NewMachine creates a Machine over the given stores. Member ids passed to
// Start, Assign and Complete are checked against md.
func NewMachine(es ExecutionStore, md MemberDirectory, c clock.Clock) *Machine {
	return &Machine{executions: es, members: md, clock: c}
}

// Get returns an execution or an error wrapping model.ErrNotFound.
func (m *Machine) Get(ctx context.Context, id int64) (*model.TaskExecution, error) {
	return m.executions.GetByID(ctx, id)
}

// Start snapshots the definition as it stands when the write happens,
// registers the assignees and moves the execution to IN_PROGRESS.
func (m *Machine) Start(ctx context.Context, id int64, assignees []int64) (*model.TaskExecution, error) {
	assignees = uniqueIDs(assignees)
	if err := m.checkMembers(ctx, assignees...); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	return m.executions.UpdateWithDefinition(ctx, id, func(e *model.TaskExecution, def *model.TaskDefinition) error {
		return applyStart(e, *def, assignees, now)
	})
}

// Assign replaces the participant set.
func (m *Machine) Assign(ctx context.Context, id int64, assignees []int64) (*model.TaskExecution, error) {
	assignees = uniqueIDs(assignees)
	if err := m.checkMembers(ctx, assignees...); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	return m.executions.Update(ctx, id, func(e *model.TaskExecution) error {
		return applyAssign(e, assignees, now)
	})
}

// Complete finishes the execution and credits every participant with the
// snapshot's frozen point value.
func (m *Machine) Complete(ctx context.Context, id int64, completedBy int64) (*model.TaskExecution, error) {
	if err := m.checkMembers(ctx, completedBy); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	return m.executions.Update(ctx, id, func(e *model.TaskExecution) error {
		return applyComplete(e, completedBy, now)
	})
}

// Cancel moves an unfinished execution to CANCELLED.
func (m *Machine) Cancel(ctx context.Context, id int64) (*model.TaskExecution, error) {
	return m.executions.Update(ctx, id, func(e *model.TaskExecution) error {
		return applyCancel(e)
	})
}

func (m *Machine) checkMembers(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	members, err := m.members.List(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	known := make(map[int64]bool, len(members))
	for _, mem := range members {
		known[mem.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return model.NotFoundError("member", id)
		}
	}
	return nil
}

func applyStart(e *model.TaskExecution, def model.TaskDefinition, assignees []int64, now time.Time) error {
	if err := checkTransition(e, ActionStart); err != nil {
		return err
	}
	if len(assignees) == 0 {
		return model.ErrNoAssignee
	}

	snap := CaptureSnapshot(def, now)
	e.Snapshot = &snap
	e.Participants = make([]model.Participant, 0, len(assignees))
	for _, id := range assignees {
		e.Participants = append(e.Participants, model.Participant{
			ExecutionID: e.ID,
			MemberID:    id,
			JoinedAt:    now.UTC(),
		})
	}
	started := now.UTC()
	e.StartedAt = &started
	e.Status = model.StatusInProgress
	return nil
}

func applyAssign(e *model.TaskExecution, assignees []int64, now time.Time) error {
	if err := checkTransition(e, ActionAssign); err != nil {
		return err
	}
	// A started execution always keeps someone responsible for it.
	if len(assignees) == 0 && e.Status == model.StatusInProgress {
		return model.ErrNoAssignee
	}

	next := make([]model.Participant, 0, len(assignees))
	for _, id := range assignees {
		if p, ok := e.Participant(id); ok {
			next = append(next, p)
			continue
		}
		next = append(next, model.Participant{
			ExecutionID: e.ID,
			MemberID:    id,
			JoinedAt:    now.UTC(),
		})
	}
	e.Participants = next
	return nil
}

func applyComplete(e *model.TaskExecution, completedBy int64, now time.Time) error {
	if err := checkTransition(e, ActionComplete); err != nil {
		return err
	}
	if e.Snapshot == nil {
		return &model.InvariantError{Entity: "task execution", ID: e.ID, Msg: "in progress without snapshot"}
	}

	for i := range e.Participants {
		e.Participants[i].EarnedPoint = e.Snapshot.FrozenPoint
	}
	completed := now.UTC()
	e.CompletedAt = &completed
	e.CompletedBy = &completedBy
	e.Status = model.StatusCompleted
	return nil
}

func applyCancel(e *model.TaskExecution) error {
	if err := checkTransition(e, ActionCancel); err != nil {
		return err
	}
	e.Status = model.StatusCancelled
	return nil
}

// uniqueIDs drops repeats, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
