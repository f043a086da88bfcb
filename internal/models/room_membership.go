package models

import "time"

// RoomMembership maps users to rooms. Removing a row removes presence only;
// the member's past messages stay in the room.
type RoomMembership struct {
	RoomID   uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	Room     *Room     `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName specifies the table name for GORM
func (RoomMembership) TableName() string {
	return "room_memberships"
}
