package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"
)

const maxInvoiceNumberAttempts = 10

var ErrInvoiceNumberExhausted = errors.New("could not allocate a unique invoice number")

// InvoiceTotals is the result of CalculateInvoiceTotal. All amounts are cents.
type InvoiceTotals struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	Total          int64 `json:"total"`
}

type LineItemInput struct {
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Total       *int64 `json:"total" validate:"omitempty,gte=0"`
	PhaseID     *uint  `json:"phase_id"`
	TaskID      *uint  `json:"task_id"`
}

type CreateInvoiceInput struct {
	ClientID       uint            `json:"client_id" validate:"required"`
	ProjectID      *uint           `json:"project_id"`
	LineItems      []LineItemInput `json:"line_items" validate:"dive"`
	Subtotal       *int64          `json:"subtotal" validate:"omitempty,gte=0"`
	DiscountAmount int64           `json:"discount_amount" validate:"gte=0"`
	TaxRateID      *uint           `json:"tax_rate_id"`
	TaxRate        *float64        `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	TaxAmount      *int64          `json:"tax_amount" validate:"omitempty,gte=0"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes          string          `json:"notes"`
	DueDate        *time.Time      `json:"due_date"`
}

// UpdateInvoiceInput patches top-level invoice fields. Status changes are not
// checked against the transition graph here; SendInvoice and CancelInvoice are.
type UpdateInvoiceInput struct {
	Status         *string    `json:"status" validate:"omitempty,oneof=draft sent paid partially_paid overdue refunded cancelled"`
	Subtotal       *int64     `json:"subtotal" validate:"omitempty,gte=0"`
	DiscountAmount *int64     `json:"discount_amount" validate:"omitempty,gte=0"`
	TaxRateID      *uint      `json:"tax_rate_id"`
	TaxRate        *float64   `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	TaxAmount      *int64     `json:"tax_amount" validate:"omitempty,gte=0"`
	Currency       *string    `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes          *string    `json:"notes"`
	DueDate        *time.Time `json:"due_date"`
}

type TaxRateInput struct {
	Name     string  `json:"name"`
	Rate     float64 `json:"rate" validate:"gte=0,lte=100"`
	Country  string  `json:"country" validate:"omitempty,len=2,alpha"`
	State    string  `json:"state"`
	IsActive *bool   `json:"is_active"`
}

type BillingService interface {
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]models.Invoice, error)
	UpdateInvoice(ctx context.Context, id uint, in UpdateInvoiceInput) (*models.Invoice, error)
	ReplaceLineItems(ctx context.Context, id uint, items []LineItemInput) (*models.Invoice, error)
	SendInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time) ([]models.Invoice, error)

	CreateTaxRate(ctx context.Context, in TaxRateInput) (*models.TaxRate, error)
	ListTaxRates(ctx context.Context, activeOnly bool) ([]models.TaxRate, error)
}

type billingService struct {
	invoiceRepo  repository.InvoiceRepository
	lineItemRepo repository.InvoiceLineItemRepository
	taxRateRepo  repository.TaxRateRepository
	clientRepo   repository.ClientRepository
	projectRepo  repository.ProjectRepository
	dispatcher   Dispatcher
	now          func() time.Time
	suffix       func() int
}

func NewBillingService(
	invoiceRepo repository.InvoiceRepository,
	lineItemRepo repository.InvoiceLineItemRepository,
	taxRateRepo repository.TaxRateRepository,
	clientRepo repository.ClientRepository,
	projectRepo repository.ProjectRepository,
	dispatcher Dispatcher,
) BillingService {
	return &billingService{
		invoiceRepo:  invoiceRepo,
		lineItemRepo: lineItemRepo,
		taxRateRepo:  taxRateRepo,
		clientRepo:   clientRepo,
		projectRepo:  projectRepo,
		dispatcher:   dispatcher,
		now:          time.Now,
		suffix:       func() int { return rand.Intn(10000) },
	}
}

// CalculateInvoiceTotal sums the line-item totals and applies the discount and
// an optional percentage tax rate. Tax is rounded half-up to the cent.
func CalculateInvoiceTotal(items []models.InvoiceLineItem, discount int64, taxRate *float64) (InvoiceTotals, error) {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Total
	}
	return applyTax(subtotal, discount, taxRate)
}

func applyTax(subtotal, discount int64, taxRate *float64) (InvoiceTotals, error) {
	if discount < 0 {
		return InvoiceTotals{}, apperrors.Validation("discount_amount", "must not be negative")
	}
	if discount > subtotal {
		return InvoiceTotals{}, apperrors.Validation("discount_amount", "must not exceed the subtotal")
	}
	totals := InvoiceTotals{Subtotal: subtotal, DiscountAmount: discount}
	if taxRate != nil {
		tax, err := computeTax(subtotal-discount, *taxRate)
		if err != nil {
			return InvoiceTotals{}, err
		}
		totals.TaxAmount = tax
	}
	totals.Total = subtotal - discount + totals.TaxAmount
	return totals, nil
}

// computeTax works in millionths of the rate so 8.5% is exact: 8.5 -> 85000.
func computeTax(base int64, rate float64) (int64, error) {
	if math.IsNaN(rate) || rate < 0 || rate > 100 {
		return 0, apperrors.Validation("tax_rate", "must be between 0 and 100")
	}
	micro := int64(math.Round(rate * 10000))
	return (base*micro + 500000) / 1000000, nil
}

// PreviewLineItems turns request line items into unsaved rows, defaulting
// each total to quantity × unit price.
func PreviewLineItems(in []LineItemInput) ([]models.InvoiceLineItem, error) {
	items, err := buildLineItems(in)
	if err != nil {
		return nil, err
	}
	for i := range in {
		if err := validateStruct(in[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func buildLineItems(in []LineItemInput) ([]models.InvoiceLineItem, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("line_items", "at least one line item is required")
	}
	items := make([]models.InvoiceLineItem, 0, len(in))
	for i, li := range in {
		desc := strings.TrimSpace(li.Description)
		if desc == "" {
			return nil, apperrors.Validation(fmt.Sprintf("line_items[%d].description", i), "is required")
		}
		total := int64(li.Quantity) * li.UnitPrice
		if li.Total != nil {
			total = *li.Total
		}
		items = append(items, models.InvoiceLineItem{
			Description: desc,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Total:       total,
			PhaseID:     li.PhaseID,
			TaskID:      li.TaskID,
			SortOrder:   i,
		})
	}
	return items, nil
}

func (s *billingService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	items, err := buildLineItems(in.LineItems)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if _, err := s.clientRepo.GetByID(ctx, in.ClientID); err != nil {
		return nil, err
	}
	if in.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project.ClientID != nil && *project.ClientID != in.ClientID {
			return nil, apperrors.Validation("project_id", "project belongs to another client")
		}
	}

	rate, err := s.resolveTaxRate(ctx, in.TaxRateID, in.TaxRate)
	if err != nil {
		return nil, err
	}

	var totals InvoiceTotals
	if in.Subtotal != nil {
		totals, err = applyTax(*in.Subtotal, in.DiscountAmount, rate)
	} else {
		totals, err = CalculateInvoiceTotal(items, in.DiscountAmount, rate)
	}
	if err != nil {
		return nil, err
	}
	if in.TaxAmount != nil {
		totals.TaxAmount = *in.TaxAmount
		totals.Total = totals.Subtotal - totals.DiscountAmount + totals.TaxAmount
	}

	invoice := &models.Invoice{
		ProjectID:      in.ProjectID,
		ClientID:       in.ClientID,
		Status:         string(models.InvoiceDraft),
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxRateID:      in.TaxRateID,
		TaxRatePercent: inlineTaxRate(in.TaxRateID, in.TaxRate, in.TaxAmount),
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Currency:       strings.ToUpper(in.Currency),
		Notes:          in.Notes,
		DueDate:        in.DueDate,
	}
	if invoice.Currency == "" {
		invoice.Currency = "USD"
	}

	if err := s.insertNumbered(ctx, invoice); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].InvoiceID = invoice.ID
	}
	if err := s.lineItemRepo.CreateBatch(ctx, items); err != nil {
		if delErr := s.invoiceRepo.Delete(ctx, invoice.ID); delErr != nil {
			log.Printf("ERROR: invoice %s left without line items: %v", invoice.InvoiceNumber, delErr)
			return nil, &apperrors.CompensationError{Op: "create invoice", Cause: err, RollbackErr: delErr}
		}
		return nil, apperrors.Dependency("create invoice line items", err)
	}
	invoice.LineItems = items

	s.dispatcher.InvoiceCreated(ctx, invoice)
	return invoice, nil
}

func (s *billingService) resolveTaxRate(ctx context.Context, id *uint, rate *float64) (*float64, error) {
	if id == nil {
		return rate, nil
	}
	tr, err := s.taxRateRepo.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if !tr.IsActive {
		return nil, apperrors.Validation("tax_rate_id", "tax rate is not active")
	}
	return &tr.Rate, nil
}

// inlineTaxRate is the percentage kept on the invoice when tax comes from an
// ad-hoc rate rather than the catalogue or a fixed amount.
func inlineTaxRate(rateID *uint, rate *float64, amount *int64) *float64 {
	if rateID != nil || amount != nil || rate == nil {
		return nil
	}
	v := *rate
	return &v
}

// insertNumbered assigns an INV-YYYYMMDD-NNNN number and inserts the invoice.
// A number taken between the existence check and the insert counts as a
// failed attempt.
func (s *billingService) insertNumbered(ctx context.Context, invoice *models.Invoice) error {
	day := s.now().UTC().Format("20060102")
	for i := 0; i < maxInvoiceNumberAttempts; i++ {
		number := fmt.Sprintf("INV-%s-%04d", day, s.suffix())
		exists, err := s.invoiceRepo.NumberExists(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		invoice.InvoiceNumber = number
		err = s.invoiceRepo.Create(ctx, invoice)
		if apperrors.IsConflict(err) {
			log.Printf("Invoice number %s taken concurrently, retrying", number)
			continue
		}
		return err
	}
	invoice.InvoiceNumber = ""
	return ErrInvoiceNumberExhausted
}

func (s *billingService) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.lineItemRepo.GetByInvoiceID(ctx, id)
	if err != nil {
		return nil, err
	}
	invoice.LineItems = items
	return invoice, nil
}

func (s *billingService) ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]models.Invoice, error) {
	if filter.Status != "" && !models.ValidInvoiceStatus(filter.Status) {
		return nil, apperrors.Validation("status", "unknown invoice status")
	}
	return s.invoiceRepo.List(ctx, filter)
}

func (s *billingService) UpdateInvoice(ctx context.Context, id uint, in UpdateInvoiceInput) (*models.Invoice, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prevStatus := invoice.Status

	if in.Subtotal != nil {
		invoice.Subtotal = *in.Subtotal
	}
	if in.DiscountAmount != nil {
		invoice.DiscountAmount = *in.DiscountAmount
	}
	switch {
	case in.TaxRateID != nil:
		invoice.TaxRateID = in.TaxRateID
		invoice.TaxRatePercent = nil
	case in.TaxRate != nil:
		invoice.TaxRateID = nil
		invoice.TaxRatePercent = inlineTaxRate(nil, in.TaxRate, nil)
	}
	if in.TaxAmount != nil {
		invoice.TaxRatePercent = nil
	}
	if in.Currency != nil {
		invoice.Currency = strings.ToUpper(*in.Currency)
	}
	if in.Notes != nil {
		invoice.Notes = *in.Notes
	}
	if in.DueDate != nil {
		invoice.DueDate = in.DueDate
	}

	if err := s.recalculate(ctx, invoice, in.TaxAmount); err != nil {
		return nil, err
	}

	if in.Status != nil {
		invoice.Status = *in.Status
	}
	return s.save(ctx, invoice, prevStatus)
}

// recalculate refreshes tax and total after a money field changed. An
// explicit tax amount wins over the catalogue rate, which wins over an
// inline percentage. Without any of them the stored tax amount is kept.
func (s *billingService) recalculate(ctx context.Context, invoice *models.Invoice, taxAmount *int64) error {
	if invoice.DiscountAmount > invoice.Subtotal {
		return apperrors.Validation("discount_amount", "must not exceed the subtotal")
	}
	var rate *float64
	switch {
	case taxAmount != nil:
		invoice.TaxAmount = *taxAmount
	case invoice.TaxRateID != nil:
		r, err := s.resolveTaxRate(ctx, invoice.TaxRateID, nil)
		if err != nil {
			return err
		}
		rate = r
	case invoice.TaxRatePercent != nil:
		rate = invoice.TaxRatePercent
	}
	if rate != nil {
		tax, err := computeTax(invoice.Subtotal-invoice.DiscountAmount, *rate)
		if err != nil {
			return err
		}
		invoice.TaxAmount = tax
	}
	invoice.Total = invoice.Subtotal - invoice.DiscountAmount + invoice.TaxAmount
	return nil
}

func (s *billingService) save(ctx context.Context, invoice *models.Invoice, prevStatus string) (*models.Invoice, error) {
	now := s.now()
	becameSent := invoice.Status == string(models.InvoiceSent) && prevStatus != string(models.InvoiceSent)
	if becameSent {
		invoice.SentAt = &now
	}
	if invoice.Status == string(models.InvoicePaid) && invoice.PaidAt == nil {
		invoice.PaidAt = &now
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}
	if becameSent {
		s.dispatcher.InvoiceSent(ctx, invoice)
	}
	return invoice, nil
}

func (s *billingService) ReplaceLineItems(ctx context.Context, id uint, in []LineItemInput) (*models.Invoice, error) {
	items, err := PreviewLineItems(in)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != string(models.InvoiceDraft) {
		return nil, apperrors.Validation("status", "line items can only be edited on a draft invoice")
	}

	totals, err := CalculateInvoiceTotal(items, invoice.DiscountAmount, nil)
	if err != nil {
		return nil, err
	}
	invoice.Subtotal = totals.Subtotal
	if err := s.recalculate(ctx, invoice, nil); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].InvoiceID = invoice.ID
	}
	if err := s.lineItemRepo.Replace(ctx, invoice.ID, items); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}
	invoice.LineItems = items
	return invoice, nil
}

func (s *billingService) SendInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceDraft, models.InvoiceSent)
}

func (s *billingService) CancelInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceDraft, models.InvoiceCancelled)
}

func (s *billingService) transition(ctx context.Context, id uint, from, to models.InvoiceStatus) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != string(from) {
		return nil, apperrors.Validation("status", fmt.Sprintf("invoice is %s, expected %s", invoice.Status, from))
	}
	prev := invoice.Status
	invoice.Status = string(to)
	return s.save(ctx, invoice, prev)
}

func (s *billingService) MarkOverdue(ctx context.Context, now time.Time) ([]models.Invoice, error) {
	invoices, err := s.invoiceRepo.MarkOverdue(ctx, calendarDay(now))
	if err != nil {
		return nil, err
	}
	if len(invoices) > 0 {
		log.Printf("Marked %d invoice(s) overdue", len(invoices))
	}
	return invoices, nil
}

func (s *billingService) CreateTaxRate(ctx context.Context, in TaxRateInput) (*models.TaxRate, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	rate := &models.TaxRate{
		Name:     name,
		Rate:     in.Rate,
		Country:  strings.ToUpper(in.Country),
		State:    in.State,
		IsActive: true,
	}
	if in.IsActive != nil {
		rate.IsActive = *in.IsActive
	}
	if err := s.taxRateRepo.Create(ctx, rate); err != nil {
		return nil, err
	}
	return rate, nil
}

func (s *billingService) ListTaxRates(ctx context.Context, activeOnly bool) ([]models.TaxRate, error) {
	return s.taxRateRepo.List(ctx, activeOnly)
}
