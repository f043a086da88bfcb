package models

import "time"

// MessageKind discriminates which message table a reaction points at.
type MessageKind string

const (
	// MessageKindDirect targets a conversation message.
	MessageKindDirect MessageKind = "direct"
	// MessageKindRoom targets a room message.
	MessageKindRoom MessageKind = "room"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	return k == MessageKindDirect || k == MessageKindRoom
}

// Reaction is an emoji reaction on a message. One row per (kind, message,
// user); reacting again replaces the emoji in place.
type Reaction struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	MessageKind MessageKind `gorm:"type:varchar(10);not null;uniqueIndex:idx_reactions_message_user" json:"message_kind"`
	MessageID   uint        `gorm:"not null;uniqueIndex:idx_reactions_message_user" json:"message_id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_reactions_message_user" json:"user_id"`
	User        *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Emoji       string      `gorm:"size:32;not null" json:"emoji"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Reaction) TableName() string {
	return "reactions"
}
