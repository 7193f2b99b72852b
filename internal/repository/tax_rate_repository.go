package repository

import (
	"context"

	"agency_tracker/internal/apperrors"
	"agency_tracker/internal/models"

	"gorm.io/gorm"
)

type TaxRateRepository interface {
	Create(ctx context.Context, rate *models.TaxRate) error
	GetByID(ctx context.Context, id uint) (*models.TaxRate, error)
	GetByName(ctx context.Context, name string) (*models.TaxRate, error)
	List(ctx context.Context, activeOnly bool) ([]models.TaxRate, error)
	Update(ctx context.Context, rate *models.TaxRate) error
}

type taxRateRepository struct {
	db *gorm.DB
}

func NewTaxRateRepository(db *gorm.DB) TaxRateRepository {
	return &taxRateRepository{db: db}
}

func (r *taxRateRepository) Create(ctx context.Context, rate *models.TaxRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *taxRateRepository) GetByID(ctx context.Context, id uint) (*models.TaxRate, error) {
	var rate models.TaxRate
	err := r.db.WithContext(ctx).First(&rate, id).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "tax rate", id)
	}
	return &rate, nil
}

func (r *taxRateRepository) GetByName(ctx context.Context, name string) (*models.TaxRate, error) {
	var rate models.TaxRate
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&rate).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "tax rate", name)
	}
	return &rate, nil
}

func (r *taxRateRepository) List(ctx context.Context, activeOnly bool) ([]models.TaxRate, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rates []models.TaxRate
	err := q.Find(&rates).Error
	return rates, err
}

func (r *taxRateRepository) Update(ctx context.Context, rate *models.TaxRate) error {
	err := updateRow(r.db.WithContext(ctx), rate, rate.ID, "tax rate")
	return apperrors.FromDB(err, "tax rate name", nil)
}
