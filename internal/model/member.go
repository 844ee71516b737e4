package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
	RoleOther  Role = "other"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleChild, RoleOther:
		return true
	}
	return false
}

// Member is a household member. Roles only group members for display and
// notifications; they carry no permissions.
type Member struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	Color       string    `json:"color"`
	AvatarEmoji string    `json:"avatar_emoji"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
