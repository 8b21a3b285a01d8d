package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant is a consulting firm operating on the platform.
type Tenant struct {
	ID             string    `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	Name           string    `gorm:"column:name;size:255;not null" json:"name"`
	Slug           string    `gorm:"column:slug;size:100;uniqueIndex;not null" json:"slug"`
	Domain         *string   `gorm:"column:domain;size:255" json:"domain"`
	PrimaryColor   string    `gorm:"column:primary_color;size:7" json:"primaryColor"`
	SecondaryColor string    `gorm:"column:secondary_color;size:7" json:"secondaryColor"`
	AccentColor    string    `gorm:"column:accent_color;size:7" json:"accentColor"`
	LogoPath       *string   `gorm:"column:logo_path;size:500" json:"-"`
	FaviconPath    *string   `gorm:"column:favicon_path;size:500" json:"-"`
	LogoURL        string    `gorm:"-" json:"logoUrl,omitempty"`
	FaviconURL     string    `gorm:"-" json:"faviconUrl,omitempty"`
	IsActive       bool      `gorm:"column:is_active;default:true" json:"isActive"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}
