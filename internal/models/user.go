// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserKind distinguishes throwaway guest accounts from registered ones.
type UserKind string

const (
	// UserKindGuest is an anonymous account provisioned at guest login.
	UserKindGuest UserKind = "guest"
	// UserKindRegistered is a credentialed account.
	UserKindRegistered UserKind = "registered"
)

// Role is the closed set of account roles.
type Role string

const (
	// RoleGuest is the role of anonymous guest accounts.
	RoleGuest Role = "guest"
	// RoleClient is a registered user on the hiring side.
	RoleClient Role = "client"
	// RoleFreelancer is a registered user on the working side.
	RoleFreelancer Role = "freelancer"
	// RoleModerator may moderate users and rooms.
	RoleModerator Role = "moderator"
	// RoleAdmin has full administrative access.
	RoleAdmin Role = "admin"
	// RoleBanned marks a user under an active ban.
	RoleBanned Role = "banned"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleClient, RoleFreelancer, RoleModerator, RoleAdmin, RoleBanned:
		return true
	}
	return false
}

// Elevated reports whether r carries moderation powers.
func (r Role) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Registrable reports whether r may be chosen at registration.
func (r Role) Registrable() bool {
	return r == RoleClient || r == RoleFreelancer
}

// User represents an account, guest or registered.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"size:32;not null;uniqueIndex" json:"username"`
	DisplayName    string         `gorm:"size:64" json:"display_name"`
	Email          *string        `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	PasswordHash   string         `gorm:"size:128" json:"-"`
	Kind           UserKind       `gorm:"type:varchar(12);not null;default:'guest'" json:"kind"`
	Role           Role           `gorm:"type:varchar(16);not null;default:'guest';index" json:"role"`
	IsOnline       bool           `gorm:"not null;default:false;index" json:"is_online"`
	StorageQuotaMB int            `gorm:"not null;default:100" json:"storage_quota_mb"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	LastLogoutAt   *time.Time     `json:"last_logout_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// IsGuest reports whether the account is an anonymous guest.
func (u *User) IsGuest() bool {
	return u.Kind == UserKindGuest
}
