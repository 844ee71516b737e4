package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `id, member_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.MemberID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription registers a device. Re-subscribing an endpoint moves it
// to memberID and refreshes its keys.
func (s *PushStore) CreateSubscription(ctx context.Context, memberID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (member_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET member_id = excluded.member_id, p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key, device_name = excluded.device_name`,
		memberID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	// LastInsertId is unreliable on the upsert path; re-query by endpoint
	return s.getByEndpoint(ctx, endpoint)
}

func (s *PushStore) GetByID(ctx context.Context, id int64) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM push_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByMember(ctx context.Context, memberID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE member_id = ? ORDER BY created_at DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by member: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// GetPreferences returns the notification preferences a member has set.
func (s *PushStore) GetPreferences(ctx context.Context, memberID int64) ([]model.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, notification_type, enabled, updated_at
		 FROM notification_preferences WHERE member_id = ? ORDER BY notification_type`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		if err := rows.Scan(&p.MemberID, &p.NotificationType, &p.Enabled, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// SetPreference upserts a notification preference.
func (s *PushStore) SetPreference(ctx context.Context, memberID int64, notifType string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (member_id, notification_type, enabled)
		 VALUES (?, ?, ?)
		 ON CONFLICT(member_id, notification_type) DO UPDATE SET enabled = excluded.enabled, updated_at = CURRENT_TIMESTAMP`,
		memberID, notifType, enabled,
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// IsPreferenceEnabled reports whether a member wants notifType. Without a
// stored preference the answer is yes.
func (s *PushStore) IsPreferenceEnabled(ctx context.Context, memberID int64, notifType string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM notification_preferences WHERE member_id = ? AND notification_type = ?`,
		memberID, notifType,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil // default enabled
	}
	if err != nil {
		return false, fmt.Errorf("check notification preference: %w", err)
	}
	return enabled, nil
}

// RecordSent marks a notification as delivered. It reports false when the
// same (member, type, reference) was already recorded, so callers can use it
// as a claim before sending.
func (s *PushStore) RecordSent(ctx context.Context, memberID int64, notifType, refID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (member_id, notification_type, reference_id) VALUES (?, ?, ?)`,
		memberID, notifType, refID,
	)
	if err != nil {
		return false, fmt.Errorf("record sent notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// WasSent checks if a notification was already sent.
func (s *PushStore) WasSent(ctx context.Context, memberID int64, notifType, refID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications WHERE member_id = ? AND notification_type = ? AND reference_id = ?`,
		memberID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes sent_notifications older than the given time.
func (s *PushStore) CleanupSent(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
