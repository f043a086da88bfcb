package models

import "time"

// MediaAsset is the durable record of a processed upload. Ref is the stable
// reference handed back by the media processor and embedded in URLs.
type MediaAsset struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:64;not null" json:"content_type"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	Ref         string    `gorm:"size:128;not null;uniqueIndex" json:"ref"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (MediaAsset) TableName() string {
	return "media_assets"
}
