package model

import "time"

type ExecutionStatus string

const (
	StatusNotStarted ExecutionStatus = "NOT_STARTED"
	StatusInProgress ExecutionStatus = "IN_PROGRESS"
	StatusCompleted  ExecutionStatus = "COMPLETED"
	StatusCancelled  ExecutionStatus = "CANCELLED"
)

func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further action is accepted.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TaskExecution is one occurrence of a definition on a scheduled date.
type TaskExecution struct {
	ID            int64           `json:"id"`
	DefinitionID  int64           `json:"definition_id"`
	ScheduledDate Date            `json:"scheduled_date"`
	Status        ExecutionStatus `json:"status"`
	Snapshot      *TaskSnapshot   `json:"snapshot,omitempty"`
	Participants  []Participant   `json:"participants"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CompletedBy   *int64          `json:"completed_by,omitempty"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AssigneeIDs returns participant member ids in join order.
func (e *TaskExecution) AssigneeIDs() []int64 {
	ids := make([]int64, 0, len(e.Participants))
	for _, p := range e.Participants {
		ids = append(ids, p.MemberID)
	}
	return ids
}

// Participant returns the record for memberID, if any.
func (e *TaskExecution) Participant(memberID int64) (Participant, bool) {
	for _, p := range e.Participants {
		if p.MemberID == memberID {
			return p, true
		}
	}
	return Participant{}, false
}

// TaskSnapshot freezes a definition's fields when its execution starts.
type TaskSnapshot struct {
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	TimeRange         TimeRange `json:"time_range"`
	Scope             Scope     `json:"scope"`
	DefinitionVersion int64     `json:"definition_version"`
	FrozenPoint       int       `json:"frozen_point"`
	CapturedAt        time.Time `json:"captured_at"`
}

type Participant struct {
	ExecutionID int64     `json:"execution_id"`
	MemberID    int64     `json:"member_id"`
	JoinedAt    time.Time `json:"joined_at"`
	EarnedPoint int       `json:"earned_point"`
}
