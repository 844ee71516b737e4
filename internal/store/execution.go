package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// ExecutionStore persists task executions and their participants.
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore creates an ExecutionStore. db should be opened with
// database.Open so transactions take the write lock up front.
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const executionCols = `id, definition_id, scheduled_date, status,
	snap_name, snap_description, snap_start_minute, snap_end_minute, snap_scope,
	snap_definition_version, snap_point, snap_captured_at,
	started_at, completed_at, completed_by, version, created_at, updated_at`

func scanExecution(scanner interface{ Scan(...any) error }) (*model.TaskExecution, error) {
	var (
		e                      model.TaskExecution
		snapName, snapDesc     sql.NullString
		snapScope              sql.NullString
		snapStart, snapEnd     sql.NullInt64
		snapVersion, snapPoint sql.NullInt64
		snapCaptured           sql.NullTime
		startedAt, completedAt sql.NullTime
		completedBy            sql.NullInt64
	)
	err := scanner.Scan(
		&e.ID, &e.DefinitionID, &e.ScheduledDate, &e.Status,
		&snapName, &snapDesc, &snapStart, &snapEnd, &snapScope,
		&snapVersion, &snapPoint, &snapCaptured,
		&startedAt, &completedAt, &completedBy, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if snapCaptured.Valid {
		e.Snapshot = &model.TaskSnapshot{
			Name:              snapName.String,
			Description:       snapDesc.String,
			TimeRange:         model.TimeRange{Start: model.TimeOfDay(snapStart.Int64), End: model.TimeOfDay(snapEnd.Int64)},
			Scope:             model.Scope(snapScope.String),
			DefinitionVersion: snapVersion.Int64,
			FrozenPoint:       int(snapPoint.Int64),
			CapturedAt:        snapCaptured.Time.UTC(),
		}
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		e.CompletedAt = &t
	}
	if completedBy.Valid {
		e.CompletedBy = &completedBy.Int64
	}
	e.Participants = []model.Participant{}
	return &e, nil
}

// CreateIfAbsent inserts a NOT_STARTED execution for (definitionID, date).
// The unique index decides races; the loser gets model.ErrDuplicateGeneration.
func (s *ExecutionStore) CreateIfAbsent(ctx context.Context, definitionID int64, date model.Date) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_executions (definition_id, scheduled_date) VALUES (?, ?)
		 ON CONFLICT (definition_id, scheduled_date) DO NOTHING`,
		definitionID, date,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task execution: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, model.ErrDuplicateGeneration
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *ExecutionStore) GetByID(ctx context.Context, id int64) (*model.TaskExecution, error) {
	e, err := s.get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, model.NotFoundError("task execution", id)
	}
	return e, nil
}

func (s *ExecutionStore) get(ctx context.Context, q querier, id int64) (*model.TaskExecution, error) {
	row := q.QueryRowContext(ctx, `SELECT `+executionCols+` FROM task_executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task execution: %w", err)
	}
	if err := loadParticipants(ctx, q, []*model.TaskExecution{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// Update runs fn against the current row inside one IMMEDIATE transaction
// and writes the result back. The version check turns a lost update into
// model.ErrConflict.
func (s *ExecutionStore) Update(ctx context.Context, id int64, fn func(*model.TaskExecution) error) (*model.TaskExecution, error) {
	return s.update(ctx, id, func(_ *sql.Tx, e *model.TaskExecution) error {
		return fn(e)
	})
}

// UpdateWithDefinition is Update with the execution's definition read in the
// same transaction, so fn sees the definition as of the write.
func (s *ExecutionStore) UpdateWithDefinition(ctx context.Context, id int64, fn func(*model.TaskExecution, *model.TaskDefinition) error) (*model.TaskExecution, error) {
	return s.update(ctx, id, func(tx *sql.Tx, e *model.TaskExecution) error {
		def, err := getTask(ctx, tx, e.DefinitionID)
		if err != nil {
			return err
		}
		if def == nil {
			return model.NotFoundError("task definition", e.DefinitionID)
		}
		return fn(e, def)
	})
}

func (s *ExecutionStore) update(ctx context.Context, id int64, fn func(*sql.Tx, *model.TaskExecution) error) (*model.TaskExecution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	e, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, model.NotFoundError("task execution", id)
	}

	version := e.Version
	if err := fn(tx, e); err != nil {
		return nil, err
	}

	if err := writeExecution(ctx, tx, e, version); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func writeExecution(ctx context.Context, tx *sql.Tx, e *model.TaskExecution, version int64) error {
	var (
		snapName, snapDesc, snapScope sql.NullString
		snapStart, snapEnd            sql.NullInt64
		snapVersion, snapPoint        sql.NullInt64
		snapCaptured                  sql.NullTime
	)
	if sn := e.Snapshot; sn != nil {
		snapName = sql.NullString{String: sn.Name, Valid: true}
		snapDesc = sql.NullString{String: sn.Description, Valid: true}
		snapScope = sql.NullString{String: string(sn.Scope), Valid: true}
		snapStart = sql.NullInt64{Int64: int64(sn.TimeRange.Start), Valid: true}
		snapEnd = sql.NullInt64{Int64: int64(sn.TimeRange.End), Valid: true}
		snapVersion = sql.NullInt64{Int64: sn.DefinitionVersion, Valid: true}
		snapPoint = sql.NullInt64{Int64: int64(sn.FrozenPoint), Valid: true}
		snapCaptured = sql.NullTime{Time: sn.CapturedAt.UTC(), Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE task_executions SET status = ?,
			snap_name = ?, snap_description = ?, snap_start_minute = ?, snap_end_minute = ?, snap_scope = ?,
			snap_definition_version = ?, snap_point = ?, snap_captured_at = ?,
			started_at = ?, completed_at = ?, completed_by = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		string(e.Status),
		snapName, snapDesc, snapStart, snapEnd, snapScope,
		snapVersion, snapPoint, snapCaptured,
		nullTime(e.StartedAt), nullTime(e.CompletedAt), nullableID(e.CompletedBy),
		e.ID, version,
	)
	if err != nil {
		return fmt.Errorf("update task execution: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("task execution %d: %w", e.ID, model.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM execution_participants WHERE execution_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for i, p := range e.Participants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO execution_participants (execution_id, member_id, position, joined_at, earned_point)
			 VALUES (?, ?, ?, ?, ?)`,
			e.ID, p.MemberID, i, p.JoinedAt.UTC(), p.EarnedPoint,
		)
		if err != nil {
			return fmt.Errorf("insert participant %d: %w", p.MemberID, err)
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ListByDate returns the executions scheduled on date.
func (s *ExecutionStore) ListByDate(ctx context.Context, date model.Date) ([]model.TaskExecution, error) {
	return s.List(ctx, ExecutionFilter{From: &date, To: &date})
}

// ExecutionFilter narrows List. Zero fields do not filter.
type ExecutionFilter struct {
	Status       []model.ExecutionStatus
	DefinitionID *int64
	MemberID     *int64      // participant
	From         *model.Date // scheduled date, inclusive
	To           *model.Date // scheduled date, inclusive

	// Completion instant, half-open [CompletedFrom, CompletedTo).
	CompletedFrom *time.Time
	CompletedTo   *time.Time

	Limit int
}

func (f ExecutionFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.Status) > 0 {
		conds = append(conds, `status IN (`+placeholders(len(f.Status))+`)`)
		for _, st := range f.Status {
			args = append(args, string(st))
		}
	}
	if f.DefinitionID != nil {
		conds = append(conds, `definition_id = ?`)
		args = append(args, *f.DefinitionID)
	}
	if f.MemberID != nil {
		conds = append(conds, `id IN (SELECT execution_id FROM execution_participants WHERE member_id = ?)`)
		args = append(args, *f.MemberID)
	}
	if f.From != nil {
		conds = append(conds, `scheduled_date >= ?`)
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, `scheduled_date <= ?`)
		args = append(args, *f.To)
	}
	if f.CompletedFrom != nil {
		conds = append(conds, `julianday(completed_at) >= julianday(?)`)
		args = append(args, f.CompletedFrom.UTC())
	}
	if f.CompletedTo != nil {
		conds = append(conds, `julianday(completed_at) < julianday(?)`)
		args = append(args, f.CompletedTo.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// List returns executions matching f ordered by scheduled date then id.
func (s *ExecutionStore) List(ctx context.Context, f ExecutionFilter) ([]model.TaskExecution, error) {
	where, args := f.where()
	query := `SELECT ` + executionCols + ` FROM task_executions` + where + ` ORDER BY scheduled_date, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task executions: %w", err)
	}
	var execs []*model.TaskExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task execution: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := loadParticipants(ctx, s.db, execs); err != nil {
		return nil, err
	}
	out := make([]model.TaskExecution, len(execs))
	for i, e := range execs {
		out[i] = *e
	}
	return out, nil
}

// loadParticipants fills Participants for execs. It must run after the rows
// that produced execs are closed: the pool holds a single connection.
func loadParticipants(ctx context.Context, q querier, execs []*model.TaskExecution) error {
	if len(execs) == 0 {
		return nil
	}
	byID := make(map[int64]*model.TaskExecution, len(execs))
	args := make([]any, 0, len(execs))
	for _, e := range execs {
		byID[e.ID] = e
		args = append(args, e.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT execution_id, member_id, joined_at, earned_point FROM execution_participants
		 WHERE execution_id IN (`+placeholders(len(args))+`) ORDER BY execution_id, position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ExecutionID, &p.MemberID, &p.JoinedAt, &p.EarnedPoint); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		p.JoinedAt = p.JoinedAt.UTC()
		e := byID[p.ExecutionID]
		e.Participants = append(e.Participants, p)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
