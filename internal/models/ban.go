package models

import "time"

// Ban records a moderation ban against a user.
//
// At most one ban per user is active at a time. Expiry is evaluated lazily
// when the user next authenticates; there is no background job flipping bans
// off, so IsActive can lag ExpiresAt until the user shows up again.
type Ban struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:idx_bans_user_active" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IssuedByID  uint       `gorm:"not null" json:"issued_by_id"`
	IssuedBy    *User      `gorm:"foreignKey:IssuedByID" json:"issued_by,omitempty"`
	Reason      string     `gorm:"type:text" json:"reason"`
	IssuedAt    time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsPermanent bool       `gorm:"not null;default:false" json:"is_permanent"`
	IsActive    bool       `gorm:"not null;default:true;index:idx_bans_user_active" json:"is_active"`
	PriorRole   Role       `gorm:"type:varchar(16);not null" json:"prior_role"`
	LiftedAt    *time.Time `json:"lifted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Ban) TableName() string {
	return "bans"
}

// ExpiredBy reports whether an active, non-permanent ban has run out as of now.
func (b *Ban) ExpiredBy(now time.Time) bool {
	if !b.IsActive || b.IsPermanent || b.ExpiresAt == nil {
		return false
	}
	return !b.ExpiresAt.After(now)
}
