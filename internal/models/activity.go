package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message addressed to a client.
type Notification struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ClientID  uint              `json:"client_id" gorm:"not null;index"`
	Type      string            `json:"type" gorm:"not null"`
	Title     string            `json:"title" gorm:"not null"`
	Message   string            `json:"message" gorm:"type:text"`
	Payload   datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	IsRead    bool              `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time         `json:"created_at"`
}

// ActivityLog rows are append-only.
type ActivityLog struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ProjectID uint              `json:"project_id" gorm:"not null;index"`
	EventType string            `json:"event_type" gorm:"not null"`
	Payload   datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	ActorID   *uint             `json:"actor_id"`
	CreatedAt time.Time         `json:"created_at"`
}

const (
	EventInvoiceCreated  = "invoice_created"
	EventInvoiceSent     = "invoice_sent"
	EventPaymentReceived = "payment_received"
	EventPaymentFailed   = "payment_failed"
	EventRefundProcessed = "refund_processed"
	EventPhaseCompleted  = "phase_completed"
	EventInvoiceOverdue  = "invoice_overdue"
)
