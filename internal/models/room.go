package models

import "time"

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	// RoomStatusActive indicates a room is open for joining and messaging.
	RoomStatusActive RoomStatus = "active"
	// RoomStatusCompleted indicates the room's work is finished.
	RoomStatusCompleted RoomStatus = "completed"
	// RoomStatusArchived indicates a room retired by its creator or a moderator.
	RoomStatusArchived RoomStatus = "archived"
)

// Valid reports whether s is one of the known room statuses.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusActive, RoomStatusCompleted, RoomStatusArchived:
		return true
	}
	return false
}

// Room is a multi-party space joined via invite code. The HTTP surface calls
// these projects.
//
// Non-permanent rooms pick up an ExpiresAt when their creator logs out
// (deleted by the sweeper once past it); renewed creator activity clears it.
// Permanent rooms never expire but their messages age out on a rolling
// window; non-permanent rooms instead cap message count.
type Room struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"size:120;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	CreatorID   uint             `gorm:"not null;index" json:"creator_id"`
	Creator     *User            `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	InviteCode  string           `gorm:"size:12;not null;uniqueIndex" json:"invite_code"`
	Status      RoomStatus       `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsPermanent bool             `gorm:"not null;default:false" json:"is_permanent"`
	ExpiresAt   *time.Time       `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Members     []RoomMembership `gorm:"foreignKey:RoomID" json:"members,omitempty"`
}

// TableName specifies the table name for GORM
func (Room) TableName() string {
	return "rooms"
}

// ExpiredBy reports whether a marked room is past its deletion timestamp.
func (r *Room) ExpiredBy(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}
