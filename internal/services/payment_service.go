package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"

	"github.com/midtrans/midtrans-go/coreapi"
)

type CreatePaymentInput struct {
	InvoiceID                uint    `json:"invoice_id" validate:"required"`
	Amount                   int64   `json:"amount" validate:"gt=0"`
	Currency                 string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Status                   string  `json:"status" validate:"omitempty,oneof=pending succeeded failed"`
	PaymentMethod            string  `json:"payment_method"`
	ProcessorPaymentIntentID *string `json:"processor_payment_intent_id"`
	ProcessorChargeID        *string `json:"processor_charge_id"`
}

type UpdatePaymentInput struct {
	Status                   string  `json:"status" validate:"required,oneof=pending succeeded failed"`
	ProcessorPaymentIntentID *string `json:"processor_payment_intent_id"`
	ProcessorChargeID        *string `json:"processor_charge_id"`
}

type CreateRefundInput struct {
	PaymentID         uint    `json:"payment_id" validate:"required"`
	Amount            int64   `json:"amount" validate:"gt=0"`
	Reason            string  `json:"reason"`
	Status            string  `json:"status" validate:"omitempty,oneof=pending succeeded failed"`
	ProcessorRefundID *string `json:"processor_refund_id"`
}

type UpdateRefundInput struct {
	Status            string  `json:"status" validate:"required,oneof=pending succeeded failed"`
	ProcessorRefundID *string `json:"processor_refund_id"`
}

type PaymentService interface {
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uint, in UpdatePaymentInput) (*models.Payment, error)
	ListPayments(ctx context.Context, invoiceID uint) ([]models.Payment, error)
	CreateRefund(ctx context.Context, in CreateRefundInput) (*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, id uint, in UpdateRefundInput) (*models.Refund, error)
	// ApplyProcessorEvent records a Midtrans transaction-status notification
	// against the payment whose intent id equals the notification's order id.
	ApplyProcessorEvent(ctx context.Context, event *coreapi.TransactionStatusResponse) (*models.Payment, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	refundRepo  repository.RefundRepository
	invoiceRepo repository.InvoiceRepository
	dispatcher  Dispatcher
	now         func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	refundRepo repository.RefundRepository,
	invoiceRepo repository.InvoiceRepository,
	dispatcher Dispatcher,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		invoiceRepo: invoiceRepo,
		dispatcher:  dispatcher,
		now:         time.Now,
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *paymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.GetByID(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	switch models.InvoiceStatus(invoice.Status) {
	case models.InvoiceCancelled:
		return nil, apperrors.Validation("invoice_id", "invoice is cancelled")
	case models.InvoiceDraft:
		return nil, apperrors.Validation("invoice_id", "invoice has not been sent")
	}

	payment := &models.Payment{
		InvoiceID:                invoice.ID,
		Amount:                   in.Amount,
		Currency:                 strings.ToUpper(in.Currency),
		Status:                   in.Status,
		PaymentMethod:            in.PaymentMethod,
		ProcessorPaymentIntentID: nonEmpty(in.ProcessorPaymentIntentID),
		ProcessorChargeID:        nonEmpty(in.ProcessorChargeID),
	}
	if payment.Currency == "" {
		payment.Currency = invoice.Currency
	}
	if payment.Status == "" {
		payment.Status = string(models.PaymentPending)
	}
	if payment.Status == string(models.PaymentSucceeded) {
		now := s.now()
		payment.PaidAt = &now
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}
	s.afterPaymentStatus(ctx, payment, "")
	return payment, nil
}

func (s *paymentService) UpdatePaymentStatus(ctx context.Context, id uint, in UpdatePaymentInput) (*models.Payment, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := payment.Status
	if prev != in.Status && prev != string(models.PaymentPending) {
		return nil, apperrors.Validation("status", fmt.Sprintf("payment is already %s", prev))
	}

	payment.Status = in.Status
	if v := nonEmpty(in.ProcessorPaymentIntentID); v != nil {
		payment.ProcessorPaymentIntentID = v
	}
	if v := nonEmpty(in.ProcessorChargeID); v != nil {
		payment.ProcessorChargeID = v
	}
	if payment.Status == string(models.PaymentSucceeded) && payment.PaidAt == nil {
		now := s.now()
		payment.PaidAt = &now
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}
	s.afterPaymentStatus(ctx, payment, prev)
	return payment, nil
}

// afterPaymentStatus runs once the payment row is committed. Nothing here can
// fail the caller.
func (s *paymentService) afterPaymentStatus(ctx context.Context, payment *models.Payment, prev string) {
	if payment.Status == prev {
		return
	}
	switch models.PaymentStatus(payment.Status) {
	case models.PaymentSucceeded:
		s.reconcileInvoice(ctx, payment.InvoiceID)
		s.dispatcher.PaymentSucceeded(ctx, payment)
	case models.PaymentFailed:
		s.dispatcher.PaymentFailed(ctx, payment)
	}
}

// reconcileInvoice derives the invoice status from its succeeded payments and
// refunds. Draft and cancelled invoices are left alone, as are invoices with
// no succeeded payment yet.
func (s *paymentService) reconcileInvoice(ctx context.Context, invoiceID uint) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		log.Printf("Warning: cannot reconcile invoice %d: %v", invoiceID, err)
		return
	}
	paid, err := s.paymentRepo.SumSucceeded(ctx, invoiceID)
	if err != nil {
		log.Printf("Warning: cannot sum payments of invoice %d: %v", invoiceID, err)
		return
	}
	refunded, err := s.refundRepo.SumSucceededByInvoice(ctx, invoiceID)
	if err != nil {
		log.Printf("Warning: cannot sum refunds of invoice %d: %v", invoiceID, err)
		return
	}

	next := deriveInvoiceStatus(invoice.Status, invoice.Total, paid, refunded)
	if next == invoice.Status {
		return
	}
	invoice.Status = next
	if next == string(models.InvoicePaid) && invoice.PaidAt == nil {
		now := s.now()
		invoice.PaidAt = &now
	}
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		log.Printf("Warning: cannot move invoice %s to %s: %v", invoice.InvoiceNumber, next, err)
	}
}

func deriveInvoiceStatus(current string, total, paid, refunded int64) string {
	if current == string(models.InvoiceCancelled) || current == string(models.InvoiceDraft) {
		return current
	}
	switch {
	case paid > 0 && refunded >= paid:
		return string(models.InvoiceRefunded)
	case paid > 0 && paid >= total:
		return string(models.InvoicePaid)
	case paid > 0:
		return string(models.InvoicePartiallyPaid)
	}
	return current
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	if _, err := s.invoiceRepo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByInvoiceID(ctx, invoiceID)
}

func (s *paymentService) CreateRefund(ctx context.Context, in CreateRefundInput) (*models.Refund, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	payment, err := s.paymentRepo.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != string(models.PaymentSucceeded) {
		return nil, apperrors.Validation("payment_id", "only succeeded payments can be refunded")
	}
	if err := s.checkRefundable(ctx, payment, in.Amount); err != nil {
		return nil, err
	}

	refund := &models.Refund{
		PaymentID:         payment.ID,
		InvoiceID:         payment.InvoiceID,
		Amount:            in.Amount,
		Reason:            in.Reason,
		ProcessorRefundID: nonEmpty(in.ProcessorRefundID),
		Status:            in.Status,
	}
	if refund.Status == "" {
		refund.Status = string(models.RefundPending)
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return nil, err
	}
	s.afterRefundStatus(ctx, refund, "")
	return refund, nil
}

func (s *paymentService) checkRefundable(ctx context.Context, payment *models.Payment, amount int64) error {
	refunded, err := s.refundRepo.SumSucceededByPayment(ctx, payment.ID)
	if err != nil {
		return err
	}
	if amount > payment.Amount-refunded {
		return apperrors.Validation("amount", fmt.Sprintf("exceeds the refundable balance of %s",
			FormatCents(payment.Amount-refunded, payment.Currency)))
	}
	return nil
}

func (s *paymentService) UpdateRefundStatus(ctx context.Context, id uint, in UpdateRefundInput) (*models.Refund, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := refund.Status
	if prev != in.Status && prev != string(models.RefundPending) {
		return nil, apperrors.Validation("status", fmt.Sprintf("refund is already %s", prev))
	}
	if in.Status == string(models.RefundSucceeded) && prev != in.Status {
		payment, err := s.paymentRepo.GetByID(ctx, refund.PaymentID)
		if err != nil {
			return nil, err
		}
		if err := s.checkRefundable(ctx, payment, refund.Amount); err != nil {
			return nil, err
		}
	}

	refund.Status = in.Status
	if v := nonEmpty(in.ProcessorRefundID); v != nil {
		refund.ProcessorRefundID = v
	}
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}
	s.afterRefundStatus(ctx, refund, prev)
	return refund, nil
}

func (s *paymentService) afterRefundStatus(ctx context.Context, refund *models.Refund, prev string) {
	if refund.Status == prev || refund.Status != string(models.RefundSucceeded) {
		return
	}
	s.reconcileInvoice(ctx, refund.InvoiceID)
	s.dispatcher.RefundSucceeded(ctx, refund)
}

func (s *paymentService) ApplyProcessorEvent(ctx context.Context, event *coreapi.TransactionStatusResponse) (*models.Payment, error) {
	if event == nil || strings.TrimSpace(event.OrderID) == "" {
		return nil, apperrors.Validation("order_id", "is required")
	}
	payment, err := s.paymentRepo.GetByProcessorIntentID(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}

	status := processorPaymentStatus(event.TransactionStatus, event.FraudStatus)
	if status == "" || status == payment.Status {
		return payment, nil
	}
	if payment.Status != string(models.PaymentPending) {
		log.Printf("Ignoring %s notification for order %s: payment %d is already %s",
			event.TransactionStatus, event.OrderID, payment.ID, payment.Status)
		return payment, nil
	}
	in := UpdatePaymentInput{Status: status}
	if event.TransactionID != "" {
		in.ProcessorChargeID = &event.TransactionID
	}
	return s.UpdatePaymentStatus(ctx, payment.ID, in)
}

// processorPaymentStatus maps Midtrans transaction states onto payment
// statuses. Refund states return "" because refunds are recorded separately.
func processorPaymentStatus(transactionStatus, fraudStatus string) string {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return string(models.PaymentSucceeded)
		case "challenge":
			return string(models.PaymentPending)
		}
		return string(models.PaymentFailed)
	case "settlement":
		return string(models.PaymentSucceeded)
	case "pending":
		return string(models.PaymentPending)
	case "deny", "cancel", "expire", "failure":
		return string(models.PaymentFailed)
	}
	return ""
}
