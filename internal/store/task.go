package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
)

// TaskStore persists task definitions. Definitions are soft-deleted so
// executions keep a valid parent.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a TaskStore backed by db.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, name, description, start_minute, end_minute, scope, owner_id, point,
	schedule_kind, rrule, start_date, end_date, deadline, version, deleted, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.TaskDefinition, error) {
	var (
		d                    model.TaskDefinition
		ownerID              sql.NullInt64
		kind, rule           string
		start, end, deadline sql.NullString
	)
	err := scanner.Scan(
		&d.ID, &d.Name, &d.Description, &d.TimeRange.Start, &d.TimeRange.End, &d.Scope, &ownerID, &d.Point,
		&kind, &rule, &start, &end, &deadline, &d.Version, &d.Deleted, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		d.OwnerID = &ownerID.Int64
	}

	// Unreadable schedule columns leave Schedule incomplete; the evaluator
	// reports that as an invariant violation for this definition alone.
	switch kind {
	case model.ScheduleKindOneTime:
		var ot model.OneTime
		if deadline.Valid {
			ot.Deadline, _ = model.ParseDate(deadline.String)
		}
		d.Schedule = ot
	case model.ScheduleKindRecurring:
		var r model.Recurring
		r.Pattern, _ = recurrence.ParsePattern(rule)
		if start.Valid {
			r.StartDate, _ = model.ParseDate(start.String)
		}
		if end.Valid {
			if e, err := model.ParseDate(end.String); err == nil {
				r.EndDate = &e
			}
		}
		d.Schedule = r
	}
	return &d, nil
}

type scheduleCols struct {
	kind                 string
	rule                 string
	start, end, deadline sql.NullString
}

func encodeSchedule(s model.Schedule) (scheduleCols, error) {
	var c scheduleCols
	switch s := s.(type) {
	case model.OneTime:
		c.kind = model.ScheduleKindOneTime
		c.deadline = sql.NullString{String: s.Deadline.String(), Valid: true}
	case model.Recurring:
		rule, err := recurrence.FormatPattern(s.Pattern)
		if err != nil {
			return c, err
		}
		c.kind = model.ScheduleKindRecurring
		c.rule = rule
		c.start = sql.NullString{String: s.StartDate.String(), Valid: true}
		if s.EndDate != nil {
			c.end = sql.NullString{String: s.EndDate.String(), Valid: true}
		}
	default:
		return c, fmt.Errorf("unsupported schedule %T", s)
	}
	return c, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create validates def and inserts it at version 1.
func (s *TaskStore) Create(ctx context.Context, def model.TaskDefinition) (*model.TaskDefinition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	sc, err := encodeSchedule(def.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_definitions (name, description, start_minute, end_minute, scope, owner_id, point,
			schedule_kind, rrule, start_date, end_date, deadline)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.Name, def.Description, int(def.TimeRange.Start), int(def.TimeRange.End), string(def.Scope), nullableID(def.OwnerID), def.Point,
		sc.kind, sc.rule, sc.start, sc.end, sc.deadline,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task definition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the definition, deleted or not, or nil if it never existed.
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.TaskDefinition, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q querier, id int64) (*model.TaskDefinition, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskCols+` FROM task_definitions WHERE id = ?`, id)
	d, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task definition: %w", err)
	}
	return d, nil
}

func (s *TaskStore) ListActive(ctx context.Context) ([]model.TaskDefinition, error) {
	return s.list(ctx, `SELECT `+taskCols+` FROM task_definitions WHERE deleted = 0 ORDER BY id`)
}

func (s *TaskStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.TaskDefinition, error) {
	return s.list(ctx, `SELECT `+taskCols+` FROM task_definitions WHERE deleted = 0 AND owner_id = ? ORDER BY id`, ownerID)
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]model.TaskDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task definitions: %w", err)
	}
	defer rows.Close()

	var defs []model.TaskDefinition
	for rows.Next() {
		d, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task definition: %w", err)
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// Update overwrites the mutable fields of def.ID and bumps its version.
// Executions already started keep their snapshot of the previous version.
func (s *TaskStore) Update(ctx context.Context, def model.TaskDefinition) (*model.TaskDefinition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	sc, err := encodeSchedule(def.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE task_definitions SET name = ?, description = ?, start_minute = ?, end_minute = ?, scope = ?,
			owner_id = ?, point = ?, schedule_kind = ?, rrule = ?, start_date = ?, end_date = ?, deadline = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`,
		def.Name, def.Description, int(def.TimeRange.Start), int(def.TimeRange.End), string(def.Scope),
		nullableID(def.OwnerID), def.Point, sc.kind, sc.rule, sc.start, sc.end, sc.deadline,
		def.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task definition: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, model.NotFoundError("task definition", def.ID)
	}
	return s.GetByID(ctx, def.ID)
}

// SoftDelete hides the definition from generation. Existing executions are
// untouched.
func (s *TaskStore) SoftDelete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE task_definitions SET deleted = 1, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`, id,
	)
	if err != nil {
		return fmt.Errorf("delete task definition: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NotFoundError("task definition", id)
	}
	return nil
}
