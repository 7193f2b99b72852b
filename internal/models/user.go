package models

import (
	"time"
)

// Client is the customer side of a project. AuthUserID links to the
// external identity provider.
type Client struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AuthUserID     string    `json:"auth_user_id" gorm:"uniqueIndex"`
	Name           string    `json:"name" gorm:"not null"`
	Email          string    `json:"email" gorm:"not null"`
	CompanyName    string    `json:"company_name"`
	WhatsAppNumber string    `json:"whatsapp_number" gorm:"column:whats_app_number"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
