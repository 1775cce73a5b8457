package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Templates and brands are kept as whole
// JSON documents; posts keep their queryable fields in columns.
type TemplateModel struct {
	ID        string         `gorm:"primaryKey"`
	BrandID   string         `gorm:"primaryKey"`
	Document  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type BrandModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"index"`
	Document  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type PostModel struct {
	ID              string `gorm:"primaryKey"`
	BrandID         string `gorm:"primaryKey;index:idx_post_brand_created,priority:1"`
	TemplateID      string `gorm:"not null;index"`
	Status          string `gorm:"not null;index"`
	SocialAccounts  datatypes.JSON
	ContentResponse datatypes.JSON
	ImageURLs       datatypes.JSON
	PostResult      datatypes.JSON
	Error           string
	CreatedAt       time.Time `gorm:"not null;index:idx_post_brand_created,priority:2"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime:false"`
}
