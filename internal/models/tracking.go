package models

import "time"

// TrackingCode grants read-only public access to a project's phase tree.
// At most one row per project has IsActive set; see migrations for the backing index.
type TrackingCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;index"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null"`
	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationPreference struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	TrackingCodeID uint      `json:"tracking_code_id" gorm:"not null;uniqueIndex:idx_pref_code_email,priority:1"`
	Email          string    `json:"email" gorm:"not null;uniqueIndex:idx_pref_code_email,priority:2"`
	OptedIn        bool      `json:"opted_in" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
