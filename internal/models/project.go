package models

import (
	"time"
)

type Project struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	Title                string    `json:"title" gorm:"not null"`
	Description          string    `json:"description" gorm:"type:text"`
	Status               string    `json:"status" gorm:"default:'draft'"` // draft, published
	ClientID             *uint     `json:"client_id" gorm:"index"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectPublished ProjectStatus = "published"
)

type Phase struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	ProjectID          uint       `json:"project_id" gorm:"not null;index:idx_phases_project_order,priority:1"`
	Name               string     `json:"name" gorm:"not null"`
	Description        string     `json:"description" gorm:"type:text"`
	SortOrder          int        `json:"sort_order" gorm:"not null;default:0;index:idx_phases_project_order,priority:2"`
	Status             string     `json:"status" gorm:"default:'pending'"` // pending, in_progress, completed
	EstimatedStartDate *time.Time `json:"estimated_start_date" gorm:"type:date"`
	EstimatedEndDate   *time.Time `json:"estimated_end_date" gorm:"type:date"`
	ActualStartDate    *time.Time `json:"actual_start_date" gorm:"type:date"`
	ActualEndDate      *time.Time `json:"actual_end_date" gorm:"type:date"`
	NotifyOnComplete   bool       `json:"notify_on_complete" gorm:"default:false"`
	EstimatedCost      int64      `json:"estimated_cost" gorm:"default:0"` // cents
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
)

func ValidPhaseStatus(s string) bool {
	switch PhaseStatus(s) {
	case PhasePending, PhaseInProgress, PhaseCompleted:
		return true
	}
	return false
}

type Task struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	PhaseID              uint      `json:"phase_id" gorm:"not null;index:idx_tasks_phase_order,priority:1"`
	Name                 string    `json:"name" gorm:"not null"`
	Description          string    `json:"description" gorm:"type:text"`
	SortOrder            int       `json:"sort_order" gorm:"not null;default:0;index:idx_tasks_phase_order,priority:2"`
	CompletionPercentage int       `json:"completion_percentage" gorm:"not null;default:0;check:completion_percentage BETWEEN 0 AND 100"`
	DeveloperNotes       string    `json:"developer_notes" gorm:"type:text"`
	EstimatedCost        int64     `json:"estimated_cost" gorm:"default:0"` // cents
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Attachment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"not null;index"`
	PhaseID   *uint     `json:"phase_id" gorm:"index"`
	TaskID    *uint     `json:"task_id" gorm:"index"`
	FileURL   string    `json:"file_url" gorm:"not null"`
	FileType  string    `json:"file_type" gorm:"not null"` // image, pdf, video_embed
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

type FileType string

const (
	FileImage      FileType = "image"
	FilePDF        FileType = "pdf"
	FileVideoEmbed FileType = "video_embed"
)

func ValidFileType(s string) bool {
	switch FileType(s) {
	case FileImage, FilePDF, FileVideoEmbed:
		return true
	}
	return false
}
