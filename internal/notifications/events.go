package notifications

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of push frame delivered over a user's
// websocket connection.
type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventMessageRead     EventType = "message_read"
	EventRoomPresence    EventType = "room_presence"
	EventMessageReacted  EventType = "message_reacted"
	EventReactionRemoved EventType = "reaction_removed"
)

// Event is the JSON frame pushed to clients: {"type": ..., "payload": ...}.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Marshal renders the event frame for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// MessageReadPayload announces that one message was marked read by its recipient.
type MessageReadPayload struct {
	ConversationID uint      `json:"conversation_id"`
	MessageID      uint      `json:"message_id"`
	ReaderID       uint      `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

// RoomPresenceAction enumerates the membership transitions a room announces.
type RoomPresenceAction string

const (
	RoomPresenceJoined         RoomPresenceAction = "joined"
	RoomPresenceLeft           RoomPresenceAction = "left"
	RoomPresenceCreatorOffline RoomPresenceAction = "creator_offline"
	RoomPresenceCreatorOnline  RoomPresenceAction = "creator_online"
)

// RoomPresencePayload announces a membership change inside a room.
type RoomPresencePayload struct {
	RoomID   uint               `json:"room_id"`
	UserID   uint               `json:"user_id"`
	Username string             `json:"username,omitempty"`
	Action   RoomPresenceAction `json:"action"`
}

// ReactionPayload announces a reaction added to or removed from a message.
type ReactionPayload struct {
	MessageKind string `json:"message_kind"`
	MessageID   uint   `json:"message_id"`
	UserID      uint   `json:"user_id"`
	Emoji       string `json:"emoji,omitempty"`
}
