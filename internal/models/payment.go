package models

import "time"

type Payment struct {
	ID                       uint       `json:"id" gorm:"primaryKey"`
	InvoiceID                uint       `json:"invoice_id" gorm:"not null;index"`
	Amount                   int64      `json:"amount" gorm:"not null"`
	Currency                 string     `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	Status                   string     `json:"status" gorm:"default:'pending'"`
	PaymentMethod            string     `json:"payment_method"`
	ProcessorPaymentIntentID *string    `json:"processor_payment_intent_id" gorm:"uniqueIndex"`
	ProcessorChargeID        *string    `json:"processor_charge_id" gorm:"uniqueIndex"`
	PaidAt                   *time.Time `json:"paid_at"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

func ValidPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentSucceeded, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

type Refund struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	PaymentID         uint      `json:"payment_id" gorm:"not null;index"`
	InvoiceID         uint      `json:"invoice_id" gorm:"not null;index"`
	Amount            int64     `json:"amount" gorm:"not null"`
	Reason            string    `json:"reason" gorm:"type:text"`
	ProcessorRefundID *string   `json:"processor_refund_id" gorm:"uniqueIndex"`
	Status            string    `json:"status" gorm:"default:'pending'"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

func ValidRefundStatus(s string) bool {
	switch RefundStatus(s) {
	case RefundPending, RefundSucceeded, RefundFailed:
		return true
	}
	return false
}
