package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByProcessorIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	GetByInvoiceID(ctx context.Context, invoiceID uint) ([]models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	SumSucceeded(ctx context.Context, invoiceID uint) (int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	return apperrors.FromDB(err, "payment processor id", nil)
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "payment", id)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByProcessorIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("processor_payment_intent_id = ?", intentID).First(&payment).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "payment", intentID)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByInvoiceID(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("id ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	err := updateRow(r.db.WithContext(ctx), payment, payment.ID, "payment")
	return apperrors.FromDB(err, "payment processor id", nil)
}

func (r *paymentRepository) SumSucceeded(ctx context.Context, invoiceID uint) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ? AND status = ?", invoiceID, models.PaymentSucceeded).
		Scan(&sum).Error
	return sum, err
}

type RefundRepository interface {
	Create(ctx context.Context, refund *models.Refund) error
	GetByID(ctx context.Context, id uint) (*models.Refund, error)
	Update(ctx context.Context, refund *models.Refund) error
	SumSucceededByPayment(ctx context.Context, paymentID uint) (int64, error)
	SumSucceededByInvoice(ctx context.Context, invoiceID uint) (int64, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, refund *models.Refund) error {
	err := r.db.WithContext(ctx).Create(refund).Error
	return apperrors.FromDB(err, "refund processor id", nil)
}

func (r *refundRepository) GetByID(ctx context.Context, id uint) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).First(&refund, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "refund", id)
	}
	return &refund, nil
}

func (r *refundRepository) Update(ctx context.Context, refund *models.Refund) error {
	err := updateRow(r.db.WithContext(ctx), refund, refund.ID, "refund")
	return apperrors.FromDB(err, "refund processor id", nil)
}

func (r *refundRepository) SumSucceededByPayment(ctx context.Context, paymentID uint) (int64, error) {
	return r.sum(ctx, "payment_id", paymentID)
}

func (r *refundRepository) SumSucceededByInvoice(ctx context.Context, invoiceID uint) (int64, error) {
	return r.sum(ctx, "invoice_id", invoiceID)
}

func (r *refundRepository) sum(ctx context.Context, column string, id uint) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&models.Refund{}).
		Select("COALESCE(SUM(amount), 0)").
		Where(column+" = ? AND status = ?", id, models.RefundSucceeded).
		Scan(&sum).Error
	return sum, err
}
