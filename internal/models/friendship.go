package models

import "time"

// FriendshipStatus represents the status of a friendship request.
type FriendshipStatus string

const (
	// FriendshipStatusPending indicates a pending friendship request.
	FriendshipStatusPending FriendshipStatus = "pending"
	// FriendshipStatusAccepted indicates an accepted friendship request.
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	// FriendshipStatusRejected indicates a declined friendship request.
	FriendshipStatusRejected FriendshipStatus = "rejected"
	// FriendshipStatusBlocked indicates a blocked relationship.
	FriendshipStatusBlocked FriendshipStatus = "blocked"
)

// Friendship represents the single relationship row for an unordered user
// pair. Direction is preserved (requester vs addressee) to distinguish sent
// from received pending requests; uniqueness across the pair is enforced by
// the services, which look the pair up in both directions.
type Friendship struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID uint             `gorm:"not null;uniqueIndex:idx_friendship_users" json:"requester_id"`
	AddresseeID uint             `gorm:"not null;uniqueIndex:idx_friendship_users" json:"addressee_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);default:'pending';index:idx_friendships_status" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relationships
	Requester User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee User `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// Involves reports whether userID is either side of the relationship.
func (f *Friendship) Involves(userID uint) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// OtherSide returns the peer of userID in the relationship.
func (f *Friendship) OtherSide(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
