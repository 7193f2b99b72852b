package models

import (
	"time"
)

type Invoice struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	ProjectID      *uint             `json:"project_id" gorm:"index"`
	ClientID       uint              `json:"client_id" gorm:"not null;index"`
	InvoiceNumber  string            `json:"invoice_number" gorm:"uniqueIndex;not null"`
	Status         string            `json:"status" gorm:"default:'draft'"`
	Subtotal       int64             `json:"subtotal" gorm:"not null"`
	DiscountAmount int64             `json:"discount_amount" gorm:"default:0"`
	TaxRateID      *uint             `json:"tax_rate_id"`
	TaxRatePercent *float64          `json:"tax_rate_percent" gorm:"type:numeric(7,4)"`
	TaxAmount      int64             `json:"tax_amount" gorm:"default:0"`
	Total          int64             `json:"total" gorm:"not null"`
	Currency       string            `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	Notes          string            `json:"notes" gorm:"type:text"`
	DueDate        *time.Time        `json:"due_date" gorm:"type:date"`
	SentAt         *time.Time        `json:"sent_at"`
	PaidAt         *time.Time        `json:"paid_at"`
	LineItems      []InvoiceLineItem `json:"line_items,omitempty" gorm:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePaid          InvoiceStatus = "paid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceRefunded      InvoiceStatus = "refunded"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

func ValidInvoiceStatus(s string) bool {
	switch InvoiceStatus(s) {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoicePartiallyPaid,
		InvoiceOverdue, InvoiceRefunded, InvoiceCancelled:
		return true
	}
	return false
}

type InvoiceLineItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	InvoiceID   uint      `json:"invoice_id" gorm:"not null;index"`
	Description string    `json:"description" gorm:"not null"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	UnitPrice   int64     `json:"unit_price" gorm:"not null"`
	Total       int64     `json:"total" gorm:"not null"`
	PhaseID     *uint     `json:"phase_id"`
	TaskID      *uint     `json:"task_id"`
	SortOrder   int       `json:"sort_order" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at"`
}

type TaxRate struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Rate      float64   `json:"rate" gorm:"not null"` // percentage, 8.5 means 8.5%
	Country   string    `json:"country" gorm:"type:varchar(2)"`
	State     string    `json:"state"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
