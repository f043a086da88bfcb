package models

import "time"

// RoomMessage is a message posted in a room. A non-nil RecipientID marks a
// secret sub-thread message: stored in the shared room but readable only by
// the sender and that recipient.
type RoomMessage struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	RoomID      uint         `gorm:"not null;index" json:"room_id"`
	Room        *Room        `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	SenderID    uint         `gorm:"not null;index" json:"sender_id"`
	Sender      *User        `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID *uint        `gorm:"index" json:"recipient_id,omitempty"`
	Recipient   *User        `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	Type        MessageType  `gorm:"type:varchar(12);not null;default:'text'" json:"type"`
	ReplyToID   *uint        `gorm:"index" json:"reply_to_id,omitempty"`
	ReplyTo     *RoomMessage `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	Caption     string       `gorm:"size:500" json:"caption,omitempty"`
	MediaID     *uint        `json:"media_id,omitempty"`
	Media       *MediaAsset  `gorm:"foreignKey:MediaID" json:"media,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (RoomMessage) TableName() string {
	return "room_messages"
}

// IsSecret reports whether the message is restricted to sender and recipient.
func (m *RoomMessage) IsSecret() bool {
	return m.RecipientID != nil
}

// ReadableBy reports whether userID may see this message.
func (m *RoomMessage) ReadableBy(userID uint) bool {
	if !m.IsSecret() {
		return true
	}
	return m.SenderID == userID || *m.RecipientID == userID
}
