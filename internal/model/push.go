package model

import "time"

// Notification type constants
const (
	NotifTypeTaskPending  = "task_pending"
	NotifTypeTaskUpcoming = "task_upcoming"
)

// PushSubscription is one browser/device registered by a member.
type PushSubscription struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationPreference struct {
	MemberID         int64     `json:"member_id"`
	NotificationType string    `json:"notification_type"`
	Enabled          bool      `json:"enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}
