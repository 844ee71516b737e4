package chore

import (
	"github.com/dukerupert/chorely/internal/model"
)

// Action names a state machine operation.
type Action string

const (
	ActionStart    Action = "start"
	ActionAssign   Action = "assign"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// allowedFrom lists the statuses each action may be applied in.
//
//	NOT_STARTED --start--> IN_PROGRESS --complete--> COMPLETED
//	     |                      |
//	     +------cancel----------+------cancel------> CANCELLED
var allowedFrom = map[Action][]model.ExecutionStatus{
	ActionStart:    {model.StatusNotStarted},
	ActionAssign:   {model.StatusNotStarted, model.StatusInProgress},
	ActionComplete: {model.StatusInProgress},
	ActionCancel:   {model.StatusNotStarted, model.StatusInProgress},
}

// CanApply reports whether action is legal for an execution in status s.
func CanApply(action Action, s model.ExecutionStatus) bool {
	for _, from := range allowedFrom[action] {
		if from == s {
			return true
		}
	}
	return false
}

func checkTransition(e *model.TaskExecution, action Action) error {
	if !CanApply(action, e.Status) {
		return &model.TransitionError{ExecutionID: e.ID, Action: string(action), From: e.Status}
	}
	return nil
}

// DisplayStatus adds "overdue" to the stored status for dashboards.
type DisplayStatus string

const (
	DisplayPending    DisplayStatus = "pending"
	DisplayInProgress DisplayStatus = "in_progress"
	DisplayOverdue    DisplayStatus = "overdue"
	DisplayCompleted  DisplayStatus = "completed"
	DisplayCancelled  DisplayStatus = "cancelled"
)

// ComputeStatus derives the dashboard status of e as seen on today. An
// unfinished execution scheduled before today is overdue.
func ComputeStatus(e model.TaskExecution, today model.Date) DisplayStatus {
	switch e.Status {
	case model.StatusCompleted:
		return DisplayCompleted
	case model.StatusCancelled:
		return DisplayCancelled
	}
	if e.ScheduledDate.Before(today) {
		return DisplayOverdue
	}
	if e.Status == model.StatusInProgress {
		return DisplayInProgress
	}
	return DisplayPending
}
