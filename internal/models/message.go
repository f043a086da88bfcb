package models

import "time"

// MessageType is the closed set of message payload kinds.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image attachment message.
	MessageTypeImage MessageType = "image"
	// MessageTypeVideo is a video attachment message.
	MessageTypeVideo MessageType = "video"
	// MessageTypeFile is a generic file attachment message.
	MessageTypeFile MessageType = "file"
	// MessageTypeSystem is a server-generated announcement.
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message is a direct (conversation) message.
//
// VisibleToA / VisibleToB are positional against the conversation's canonical
// pair: A is the Conversation.UserAID side. A side's bit is cleared when that
// side logs out and is never set again for existing rows; new messages start
// visible to both.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID uint          `gorm:"not null;index" json:"conversation_id"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	SenderID       uint          `gorm:"not null;index" json:"sender_id"`
	Sender         *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	Type           MessageType   `gorm:"type:varchar(12);not null;default:'text'" json:"type"`
	IsRead         bool          `gorm:"not null;default:false" json:"is_read"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	VisibleToA     bool          `gorm:"not null;default:true" json:"-"`
	VisibleToB     bool          `gorm:"not null;default:true" json:"-"`
	ReplyToID      *uint         `gorm:"index" json:"reply_to_id,omitempty"`
	ReplyTo        *Message      `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	Caption        string        `gorm:"size:500" json:"caption,omitempty"`
	MediaID        *uint         `json:"media_id,omitempty"`
	Media          *MediaAsset   `gorm:"foreignKey:MediaID" json:"media,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// VisibleTo reports the visibility bit for userID's side of the conversation.
// The conversation must be loaded or passed alongside; side resolution is
// positional.
func (m *Message) VisibleTo(c *Conversation, userID uint) bool {
	if c.SideOf(userID) {
		return m.VisibleToA
	}
	return m.VisibleToB
}
