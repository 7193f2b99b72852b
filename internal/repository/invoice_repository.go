package repository

import (
	"context"
	"time"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type InvoiceFilter struct {
	ClientID  *uint
	ProjectID *uint
	Status    string
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uint) (*models.Invoice, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, id uint) error
	// MarkOverdue flips sent and partially paid invoices whose due date is
	// before the given day and returns the affected rows.
	MarkOverdue(ctx context.Context, before time.Time) ([]models.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	err := r.db.WithContext(ctx).Create(invoice).Error
	return apperrors.FromDB(err, "invoice", invoice.InvoiceNumber)
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "invoice", id)
	}
	return &invoice, nil
}

func (r *invoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("invoice_number = ?", number).Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var invoices []models.Invoice
	err := q.Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	err := updateRow(r.db.WithContext(ctx), invoice, invoice.ID, "invoice")
	return apperrors.FromDB(err, "invoice number", nil)
}

func (r *invoiceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, id).Error
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, before time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		openStatuses := []string{string(models.InvoiceSent), string(models.InvoicePartiallyPaid)}
		var candidates []models.Invoice
		if err := tx.Where("status IN ? AND due_date < ?", openStatuses, before).Find(&candidates).Error; err != nil {
			return err
		}
		// Guarded per row: an invoice paid since the read keeps its status.
		for _, inv := range candidates {
			res := tx.Model(&models.Invoice{}).
				Where("id = ? AND status IN ?", inv.ID, openStatuses).
				Updates(map[string]interface{}{"status": string(models.InvoiceOverdue), "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				inv.Status = string(models.InvoiceOverdue)
				invoices = append(invoices, inv)
			}
		}
		return nil
	})
	return invoices, err
}

type InvoiceLineItemRepository interface {
	CreateBatch(ctx context.Context, items []models.InvoiceLineItem) error
	GetByInvoiceID(ctx context.Context, invoiceID uint) ([]models.InvoiceLineItem, error)
	Replace(ctx context.Context, invoiceID uint, items []models.InvoiceLineItem) error
	DeleteByInvoiceID(ctx context.Context, invoiceID uint) error
}

type invoiceLineItemRepository struct {
	db *gorm.DB
}

func NewInvoiceLineItemRepository(db *gorm.DB) InvoiceLineItemRepository {
	return &invoiceLineItemRepository{db: db}
}

func (r *invoiceLineItemRepository) CreateBatch(ctx context.Context, items []models.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *invoiceLineItemRepository) GetByInvoiceID(ctx context.Context, invoiceID uint) ([]models.InvoiceLineItem, error) {
	var items []models.InvoiceLineItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *invoiceLineItemRepository) Replace(ctx context.Context, invoiceID uint, items []models.InvoiceLineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *invoiceLineItemRepository) DeleteByInvoiceID(ctx context.Context, invoiceID uint) error {
	return r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceLineItem{}).Error
}
