package services

import (
	"context"
	"fmt"
	"log"

	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
)

// Notification is what the dispatcher hands to a NotificationSink.
type Notification struct {
	RecipientID uint
	Type        string
	Title       string
	Message     string
	Payload     map[string]interface{}
}

type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}

type ActivityLogger interface {
	Log(ctx context.Context, projectID uint, eventType string, payload map[string]interface{}, actorID *uint) error
}

// Dispatcher turns billing transitions into client notifications and
// activity-log entries. Its methods never fail: sink errors are logged and
// dropped so the billing write that triggered them stays committed.
type Dispatcher interface {
	InvoiceCreated(ctx context.Context, invoice *models.Invoice)
	InvoiceSent(ctx context.Context, invoice *models.Invoice)
	PaymentSucceeded(ctx context.Context, payment *models.Payment)
	PaymentFailed(ctx context.Context, payment *models.Payment)
	RefundSucceeded(ctx context.Context, refund *models.Refund)
}

type dispatcher struct {
	invoiceRepo repository.InvoiceRepository
	notifier    NotificationSink
	activity    ActivityLogger
}

func NewDispatcher(invoiceRepo repository.InvoiceRepository, notifier NotificationSink, activity ActivityLogger) Dispatcher {
	return &dispatcher{invoiceRepo: invoiceRepo, notifier: notifier, activity: activity}
}

type actorKey struct{}

// WithActor records the admin user behind a request for activity-log entries.
func WithActor(ctx context.Context, actorID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actorFrom(ctx context.Context) *uint {
	if id, ok := ctx.Value(actorKey{}).(uint); ok {
		return &id
	}
	return nil
}

// FormatCents renders an amount in minor units, e.g. 27125 USD -> "USD 271.25".
func FormatCents(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, amount/100, amount%100)
}

func (d *dispatcher) InvoiceCreated(ctx context.Context, invoice *models.Invoice) {
	if invoice.ProjectID == nil {
		return
	}
	d.log(ctx, *invoice.ProjectID, models.EventInvoiceCreated, map[string]interface{}{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"total":          invoice.Total,
		"currency":       invoice.Currency,
	})
}

func (d *dispatcher) InvoiceSent(ctx context.Context, invoice *models.Invoice) {
	payload := map[string]interface{}{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"total":          invoice.Total,
		"currency":       invoice.Currency,
	}
	if invoice.DueDate != nil {
		payload["due_date"] = invoice.DueDate.Format("2006-01-02")
	}

	d.notify(ctx, Notification{
		RecipientID: invoice.ClientID,
		Type:        models.EventInvoiceSent,
		Title:       fmt.Sprintf("New invoice %s", invoice.InvoiceNumber),
		Message:     fmt.Sprintf("Invoice %s for %s is ready for payment.", invoice.InvoiceNumber, FormatCents(invoice.Total, invoice.Currency)),
		Payload:     payload,
	})
	if invoice.ProjectID != nil {
		d.log(ctx, *invoice.ProjectID, models.EventInvoiceSent, payload)
	}
}

func (d *dispatcher) PaymentSucceeded(ctx context.Context, payment *models.Payment) {
	invoice, ok := d.parentInvoice(ctx, payment.InvoiceID, "payment_received")
	if !ok {
		return
	}
	payload := map[string]interface{}{
		"payment_id":     payment.ID,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"amount":         payment.Amount,
		"currency":       payment.Currency,
	}

	d.notify(ctx, Notification{
		RecipientID: invoice.ClientID,
		Type:        models.EventPaymentReceived,
		Title:       "Payment received",
		Message:     fmt.Sprintf("We received %s for invoice %s. Thank you!", FormatCents(payment.Amount, payment.Currency), invoice.InvoiceNumber),
		Payload:     payload,
	})
	if invoice.ProjectID != nil {
		d.log(ctx, *invoice.ProjectID, models.EventPaymentReceived, payload)
	}
}

func (d *dispatcher) PaymentFailed(ctx context.Context, payment *models.Payment) {
	invoice, ok := d.parentInvoice(ctx, payment.InvoiceID, "payment_failed")
	if !ok {
		return
	}
	d.notify(ctx, Notification{
		RecipientID: invoice.ClientID,
		Type:        models.EventPaymentFailed,
		Title:       "Payment failed",
		Message:     fmt.Sprintf("Your payment of %s for invoice %s could not be processed.", FormatCents(payment.Amount, payment.Currency), invoice.InvoiceNumber),
		Payload: map[string]interface{}{
			"payment_id":     payment.ID,
			"invoice_id":     invoice.ID,
			"invoice_number": invoice.InvoiceNumber,
			"amount":         payment.Amount,
			"currency":       payment.Currency,
		},
	})
}

func (d *dispatcher) RefundSucceeded(ctx context.Context, refund *models.Refund) {
	invoice, ok := d.parentInvoice(ctx, refund.InvoiceID, "refund_processed")
	if !ok {
		return
	}
	payload := map[string]interface{}{
		"refund_id":      refund.ID,
		"payment_id":     refund.PaymentID,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"amount":         refund.Amount,
		"currency":       invoice.Currency,
	}

	d.notify(ctx, Notification{
		RecipientID: invoice.ClientID,
		Type:        models.EventRefundProcessed,
		Title:       "Refund processed",
		Message:     fmt.Sprintf("A refund of %s for invoice %s has been processed.", FormatCents(refund.Amount, invoice.Currency), invoice.InvoiceNumber),
		Payload:     payload,
	})
	if invoice.ProjectID != nil {
		d.log(ctx, *invoice.ProjectID, models.EventRefundProcessed, payload)
	}
}

func (d *dispatcher) parentInvoice(ctx context.Context, invoiceID uint, event string) (*models.Invoice, bool) {
	invoice, err := d.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		log.Printf("Warning: %s side effects skipped, invoice %d lookup failed: %v", event, invoiceID, err)
		return nil, false
	}
	return invoice, true
}

func (d *dispatcher) notify(ctx context.Context, n Notification) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		log.Printf("Warning: %s notification to client %d failed: %v", n.Type, n.RecipientID, err)
	}
}

func (d *dispatcher) log(ctx context.Context, projectID uint, eventType string, payload map[string]interface{}) {
	if d.activity == nil {
		return
	}
	if err := d.activity.Log(ctx, projectID, eventType, payload, actorFrom(ctx)); err != nil {
		log.Printf("Warning: %s activity log for project %d failed: %v", eventType, projectID, err)
	}
}
