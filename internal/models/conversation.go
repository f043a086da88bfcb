package models

import "time"

// Conversation is a two-party direct chat session with a bounded lifetime.
//
// The participant pair is stored in canonical order (UserAID < UserBID) so
// the unique index guarantees at most one conversation per unordered pair.
// Logged-out flags record which sides have logged out since the last send
// from that side; once both are set the conversation is deleted outright.
type Conversation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserAID        uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_a_id"`
	UserBID        uint       `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_b_id"`
	UserA          *User      `gorm:"foreignKey:UserAID" json:"user_a,omitempty"`
	UserB          *User      `gorm:"foreignKey:UserBID" json:"user_b,omitempty"`
	ExpiresAt      time.Time  `gorm:"not null;index" json:"expires_at"`
	UserALoggedOut bool       `gorm:"not null;default:false" json:"user_a_logged_out"`
	UserBLoggedOut bool       `gorm:"not null;default:false" json:"user_b_logged_out"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Messages       []Message  `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName specifies the table name for GORM
func (Conversation) TableName() string {
	return "conversations"
}

// CanonicalPair returns the two user IDs in stored (sorted) order.
func CanonicalPair(userX, userY uint) (uint, uint) {
	if userX < userY {
		return userX, userY
	}
	return userY, userX
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// PeerOf returns the other participant's ID.
func (c *Conversation) PeerOf(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// SideOf reports whether userID occupies the A side. Callers must have
// verified participation first.
func (c *Conversation) SideOf(userID uint) bool {
	return c.UserAID == userID
}

// LoggedOut reports the logged-out flag for userID's side.
func (c *Conversation) LoggedOut(userID uint) bool {
	if c.SideOf(userID) {
		return c.UserALoggedOut
	}
	return c.UserBLoggedOut
}

// ExpiredBy reports whether the conversation's window has passed as of now.
func (c *Conversation) ExpiredBy(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
