package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"agency_tracker/internal/models"

	"github.com/robfig/cron/v3"
)

// ReminderService sweeps unpaid invoices past their due date and reminds the
// client of each one.
type ReminderService interface {
	ProcessOverdueInvoices(ctx context.Context) (int, error)
	Start(schedule string) (*cron.Cron, error)
}

type reminderService struct {
	billing  BillingService
	notifier NotificationSink
	now      func() time.Time
}

func NewReminderService(billing BillingService, notifier NotificationSink) ReminderService {
	return &reminderService{billing: billing, notifier: notifier, now: time.Now}
}

func (s *reminderService) ProcessOverdueInvoices(ctx context.Context) (int, error) {
	invoices, err := s.billing.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for i := range invoices {
		inv := &invoices[i]
		if s.notifier == nil {
			continue
		}
		err := s.notifier.Notify(ctx, Notification{
			RecipientID: inv.ClientID,
			Type:        models.EventInvoiceOverdue,
			Title:       fmt.Sprintf("Invoice %s is overdue", inv.InvoiceNumber),
			Message:     fmt.Sprintf("⏰ Invoice %s for %s is past its due date.", inv.InvoiceNumber, FormatCents(inv.Total, inv.Currency)),
			Payload: map[string]interface{}{
				"invoice_id":     inv.ID,
				"invoice_number": inv.InvoiceNumber,
				"total":          inv.Total,
				"currency":       inv.Currency,
			},
		})
		if err != nil {
			log.Printf("Failed to send overdue reminder for invoice %s: %v", inv.InvoiceNumber, err)
		}
	}
	return len(invoices), nil
}

// Start registers the sweep on a cron schedule and starts the scheduler.
// Overlapping runs are skipped.
func (s *reminderService) Start(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		n, err := s.ProcessOverdueInvoices(ctx)
		if err != nil {
			log.Printf("Overdue sweep failed: %v", err)
			return
		}
		log.Printf("Overdue sweep done, %d invoice(s) flagged", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid overdue schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
