package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.Name, &m.Role, &m.Color, &m.AvatarEmoji, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, name, role, color, avatar_emoji, sort_order, created_at, updated_at`

func (s *MemberStore) Create(ctx context.Context, name string, role model.Role, color, avatarEmoji string) (*model.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	var maxOrder int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), -1) FROM members`).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (name, role, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?, ?)`,
		name, string(role), color, avatarEmoji, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *MemberStore) List(ctx context.Context) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberCols+` FROM members ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) Update(ctx context.Context, id int64, name string, role model.Role, color, avatarEmoji string) (*model.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, role = ?, color = ?, avatar_emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, string(role), color, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a member and their push registrations. A member still
// referenced by a task definition or any execution is kept, and the error
// wraps model.ErrConflict.
func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	var refs int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM task_definitions WHERE owner_id = ?)
			+ (SELECT COUNT(*) FROM execution_participants WHERE member_id = ?)
			+ (SELECT COUNT(*) FROM task_executions WHERE completed_by = ?)`,
		id, id, id,
	).Scan(&refs)
	if err != nil {
		return fmt.Errorf("count member references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("member %d has task history: %w", id, model.ErrConflict)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.NotFoundError("member", id)
	}
	return nil
}

func (s *MemberStore) UpdateSortOrder(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE members SET sort_order = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i, id); err != nil {
			return fmt.Errorf("update sort order for id %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *MemberStore) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE name = ? AND id != ?`,
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
